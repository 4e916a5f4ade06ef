package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// Errors returned by ICYMetadataSource.
var (
	ErrNoMetadata    = errors.New("stream does not announce metadata")
	ErrNoStreamTitle = errors.New("stream title not found")
)

const (
	// Upper bound for icy-metaint; anything larger is treated as a broken header.
	maxMetaInterval = 1 << 20
	// Metadata blocks to inspect before giving up; some servers send empty blocks between updates.
	defaultMetadataBlocks = 3
)

// ICYMetadataSource reads the current stream title from Shoutcast/Icecast in-band metadata.
type ICYMetadataSource struct {
	client    *http.Client
	userAgent string
	maxBlocks int
}

// NewICYMetadataSource creates a new ICYMetadataSource.
// The request lifetime is bounded by the context passed to FetchTitle.
func NewICYMetadataSource(userAgent string) *ICYMetadataSource {
	return &ICYMetadataSource{
		client:    &http.Client{},
		userAgent: userAgent,
		maxBlocks: defaultMetadataBlocks,
	}
}

// FetchTitle connects to the stream and returns the first non-empty StreamTitle.
func (s *ICYMetadataSource) FetchTitle(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("Accept", "*/*")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	interval, err := strconv.Atoi(resp.Header.Get("icy-metaint"))
	if err != nil || interval <= 0 || interval > maxMetaInterval {
		return "", ErrNoMetadata
	}

	return readStreamTitle(resp.Body, interval, s.maxBlocks)
}

// readStreamTitle walks the ICY framing: interval audio bytes, one length byte,
// then length*16 bytes of metadata text, repeated.
func readStreamTitle(r io.Reader, interval, maxBlocks int) (string, error) {
	lengthByte := make([]byte, 1)
	metadata := make([]byte, 255*16)

	for range maxBlocks {
		if _, err := io.CopyN(io.Discard, r, int64(interval)); err != nil {
			return "", fmt.Errorf("failed to skip audio data: %w", err)
		}
		if _, err := io.ReadFull(r, lengthByte); err != nil {
			return "", fmt.Errorf("failed to read metadata length: %w", err)
		}

		length := int(lengthByte[0]) * 16
		if length == 0 {
			continue
		}
		if _, err := io.ReadFull(r, metadata[:length]); err != nil {
			return "", fmt.Errorf("failed to read metadata: %w", err)
		}

		if title, ok := domain.ParseStreamTitle(string(metadata[:length])); ok {
			return title, nil
		}
	}

	return "", ErrNoStreamTitle
}

// Ensure ICYMetadataSource implements ports.MetadataSource.
var _ ports.MetadataSource = (*ICYMetadataSource)(nil)
