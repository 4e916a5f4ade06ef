package usecases

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// statePersister keeps the durable record of every guild and writes the full
// set to the store whenever one guild changes. A nil store disables persistence.
type statePersister struct {
	store ports.StateStore

	mu      sync.Mutex
	records map[snowflake.ID]domain.PersistedRecord
}

func newStatePersister(store ports.StateStore) *statePersister {
	return &statePersister{
		store:   store,
		records: make(map[snowflake.ID]domain.PersistedRecord),
	}
}

// load reads the stored records and makes them the current set.
func (p *statePersister) load(ctx context.Context) (map[snowflake.ID]domain.PersistedRecord, error) {
	if p.store == nil {
		return nil, nil
	}

	records, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = maps.Clone(records)
	if p.records == nil {
		p.records = make(map[snowflake.ID]domain.PersistedRecord)
	}

	return records, nil
}

// persist updates the guild's record from state and saves the full set.
// Failures are logged; playback never depends on the store.
func (p *statePersister) persist(ctx context.Context, state *domain.GuildState) {
	if p.store == nil {
		return
	}

	record, ok := state.Record()

	p.mu.Lock()
	defer p.mu.Unlock()

	if ok {
		p.records[state.GuildID()] = record
	} else {
		delete(p.records, state.GuildID())
	}
	p.saveLocked(ctx, state.GuildID())
}

// forget drops the guild's record and saves the full set.
func (p *statePersister) forget(ctx context.Context, guildID snowflake.ID) {
	if p.store == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.records, guildID)
	p.saveLocked(ctx, guildID)
}

func (p *statePersister) saveLocked(ctx context.Context, guildID snowflake.ID) {
	if err := p.store.Save(ctx, maps.Clone(p.records)); err != nil {
		slog.Error("failed to persist playback state",
			"guild", guildID,
			"error", err,
		)
	}
}
