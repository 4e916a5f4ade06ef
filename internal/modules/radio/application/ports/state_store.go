package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// StateStore defines the interface for durable playback intent storage.
// Save replaces the whole stored set.
type StateStore interface {
	// Load returns all stored records. A store that was never written returns an empty map.
	Load(ctx context.Context) (map[snowflake.ID]domain.PersistedRecord, error)

	// Save overwrites the stored records with records.
	Save(ctx context.Context, records map[snowflake.ID]domain.PersistedRecord) error
}
