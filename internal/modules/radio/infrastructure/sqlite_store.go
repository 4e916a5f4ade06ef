package infrastructure

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS guild_playback (
	guild_id         INTEGER PRIMARY KEY,
	voice_channel_id INTEGER NOT NULL,
	text_channel_id  INTEGER NOT NULL,
	stream_url       TEXT    NOT NULL,
	stream_name      TEXT    NOT NULL,
	requester_id     INTEGER NOT NULL
)`

// SQLiteStateStore persists playback intent in the guild_playback table of a SQLite database.
type SQLiteStateStore struct {
	db *sql.DB
}

// NewSQLiteStateStore opens the database at path and creates the schema if needed.
func NewSQLiteStateStore(ctx context.Context, path string) (*SQLiteStateStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create state schema: %w", err)
	}

	return &SQLiteStateStore{db: db}, nil
}

// Load returns all stored records.
func (s *SQLiteStateStore) Load(ctx context.Context) (map[snowflake.ID]domain.PersistedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, voice_channel_id, text_channel_id, stream_url, stream_name, requester_id
		FROM guild_playback`)
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make(map[snowflake.ID]domain.PersistedRecord)
	for rows.Next() {
		var (
			guildID, voiceChannelID, textChannelID, requesterID int64
			record                                              domain.PersistedRecord
		)
		if err := rows.Scan(
			&guildID,
			&voiceChannelID,
			&textChannelID,
			&record.StreamURL,
			&record.StreamName,
			&requesterID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		record.VoiceChannelID = snowflake.ID(voiceChannelID)
		record.TextChannelID = snowflake.ID(textChannelID)
		record.RequesterID = snowflake.ID(requesterID)
		records[snowflake.ID(guildID)] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read state rows: %w", err)
	}

	return records, nil
}

// Save replaces the table contents with records in a single transaction.
func (s *SQLiteStateStore) Save(
	ctx context.Context,
	records map[snowflake.ID]domain.PersistedRecord,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM guild_playback`); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO guild_playback
			(guild_id, voice_channel_id, text_channel_id, stream_url, stream_name, requester_id)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for guildID, record := range records {
		if _, err := stmt.ExecContext(ctx,
			int64(guildID),
			int64(record.VoiceChannelID),
			int64(record.TextChannelID),
			record.StreamURL,
			record.StreamName,
			int64(record.RequesterID),
		); err != nil {
			return fmt.Errorf("failed to insert state for guild %s: %w", guildID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStateStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStateStore implements ports.StateStore.
var _ ports.StateStore = (*SQLiteStateStore)(nil)
