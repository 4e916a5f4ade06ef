package infrastructure

import (
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// MemoryRepository is an in-memory implementation of GuildStateRepository.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[snowflake.ID]*domain.GuildState
}

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		states: make(map[snowflake.ID]*domain.GuildState),
	}
}

// Get returns the GuildState for the given guild, or nil if not exists.
func (r *MemoryRepository) Get(guildID snowflake.ID) *domain.GuildState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.states[guildID]
}

// Upsert returns the GuildState for the given guild, creating an idle one if needed.
// mutate runs while the repository lock is held and must not call back into it.
func (r *MemoryRepository) Upsert(
	guildID snowflake.ID,
	mutate func(*domain.GuildState),
) *domain.GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[guildID]
	if !ok {
		state = domain.NewGuildState(guildID)
		r.states[guildID] = state
	}
	if mutate != nil {
		mutate(state)
	}
	return state
}

// Delete removes the GuildState for the given guild.
func (r *MemoryRepository) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, guildID)
}

// GuildIDs returns the IDs of all stored guilds in ascending order.
func (r *MemoryRepository) GuildIDs() []snowflake.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]snowflake.ID, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of guild states (for testing/monitoring).
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.states)
}

// Ensure MemoryRepository implements GuildStateRepository.
var _ domain.GuildStateRepository = (*MemoryRepository)(nil)
