package ports

import "context"

// MetadataSource defines the interface for reading the current title of a stream.
type MetadataSource interface {
	// FetchTitle returns the stream title announced by the server.
	FetchTitle(ctx context.Context, url string) (string, error)
}
