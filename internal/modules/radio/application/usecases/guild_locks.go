package usecases

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// guildLocks hands out one mutex per guild so that operations on the same guild
// never interleave while different guilds proceed concurrently.
type guildLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*sync.Mutex
}

func newGuildLocks() *guildLocks {
	return &guildLocks{
		locks: make(map[snowflake.ID]*sync.Mutex),
	}
}

// lock acquires the guild's mutex and returns the function that releases it.
func (l *guildLocks) lock(guildID snowflake.ID) func() {
	l.mu.Lock()
	m, ok := l.locks[guildID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[guildID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
