package domain

import "github.com/disgoorg/snowflake/v2"

// GuildStateRepository defines the interface for storing and retrieving guild states.
type GuildStateRepository interface {
	// Get returns the GuildState for the given guild, or nil if none exists.
	Get(guildID snowflake.ID) *GuildState

	// Upsert returns the GuildState for the given guild, creating it if needed,
	// after applying mutate to it.
	Upsert(guildID snowflake.ID, mutate func(*GuildState)) *GuildState

	// Delete removes the GuildState for the given guild.
	Delete(guildID snowflake.ID)

	// GuildIDs returns a snapshot of all guilds with a state.
	GuildIDs() []snowflake.ID
}
