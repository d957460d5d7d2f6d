package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit bounds the WAL file so a crashed daemon never leaves a
// runaway journal behind.
const walJournalSizeLimit = 67108864 // 64 MiB

// SQLiteStore implements Store using an embedded SQLite database in WAL
// mode, following internal/sync/state.go's shape: one *sql.DB, migrations
// applied via goose at open time, prepared statements for the hot paths.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	getSongState    *sql.Stmt
	upsertSongState *sql.Stmt
	getSetting      *sql.Stmt
	upsertSetting   *sql.Stmt
	getTokens       *sql.Stmt
	upsertTokens    *sql.Stmt
	getAudioHash    *sql.Stmt
	upsertAudioHash *sql.Stmt
	deleteAudioHash *sql.Stmt
}

// NewStore opens (creating if necessary) the SQLite database at dbPath,
// applies pending migrations, and prepares the statements used on every
// call. Use ":memory:" for tests.
func NewStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	logger.Info("opening local state database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite: %w", err)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: prepare statements: %w", err)
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("state: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("state: migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("state: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("state: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration", "source", r.Source.Path, "duration_ms", r.Duration.Milliseconds())
	}

	return nil
}

func (s *SQLiteStore) prepareStatements(ctx context.Context) (err error) {
	stmts := []struct {
		dst  **sql.Stmt
		text string
	}{
		{&s.getSongState, `SELECT revision, known_hash, updated_at FROM song_state WHERE project_id = ? AND song_id = ?`},
		{&s.upsertSongState, `INSERT INTO song_state (project_id, song_id, revision, known_hash, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(project_id, song_id) DO UPDATE SET
				revision = excluded.revision, known_hash = excluded.known_hash, updated_at = excluded.updated_at`},
		{&s.getSetting, `SELECT value FROM settings WHERE key = ?`},
		{&s.upsertSetting, `INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`},
		{&s.getTokens, `SELECT access_token, refresh_token, expiry_unix, username FROM auth_tokens WHERE id = 1`},
		{&s.upsertTokens, `INSERT INTO auth_tokens (id, access_token, refresh_token, expiry_unix, username)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				access_token = excluded.access_token, refresh_token = excluded.refresh_token,
				expiry_unix = excluded.expiry_unix, username = excluded.username`},
		{&s.getAudioHash, `SELECT hash, last_upload_at FROM audio_path_hash WHERE path = ?`},
		{&s.upsertAudioHash, `INSERT INTO audio_path_hash (path, hash, last_upload_at) VALUES (?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, last_upload_at = excluded.last_upload_at`},
		{&s.deleteAudioHash, `DELETE FROM audio_path_hash WHERE path = ?`},
	}

	for _, st := range stmts {
		*st.dst, err = s.db.PrepareContext(ctx, st.text)
		if err != nil {
			return fmt.Errorf("preparing %q: %w", st.text, err)
		}
	}

	return nil
}

func (s *SQLiteStore) GetSongState(projectID, songID int64) (*SongState, bool, error) {
	row := s.getSongState.QueryRow(projectID, songID)

	var st SongState
	st.ProjectID, st.SongID = projectID, songID

	if err := row.Scan(&st.Revision, &st.KnownHash, &st.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("state: get song state: %w", err)
	}

	return &st, true, nil
}

func (s *SQLiteStore) PutSongState(st *SongState) error {
	if _, err := s.upsertSongState.Exec(st.ProjectID, st.SongID, st.Revision, st.KnownHash, st.UpdatedAt); err != nil {
		return fmt.Errorf("state: put song state: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetSetting(key string) (string, bool, error) {
	var value string

	if err := s.getSetting.QueryRow(key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("state: get setting %q: %w", key, err)
	}

	return value, true, nil
}

func (s *SQLiteStore) PutSetting(key, value string) error {
	if _, err := s.upsertSetting.Exec(key, value); err != nil {
		return fmt.Errorf("state: put setting %q: %w", key, err)
	}

	return nil
}

func (s *SQLiteStore) GetAuthTokens() (*AuthTokens, bool, error) {
	var t AuthTokens

	if err := s.getTokens.QueryRow().Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiryUnix, &t.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("state: get auth tokens: %w", err)
	}

	return &t, true, nil
}

func (s *SQLiteStore) PutAuthTokens(t *AuthTokens) error {
	if _, err := s.upsertTokens.Exec(t.AccessToken, t.RefreshToken, t.ExpiryUnix, t.Username); err != nil {
		return fmt.Errorf("state: put auth tokens: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetAudioPathHash(path string) (*AudioPathHash, bool, error) {
	var h AudioPathHash
	h.Path = path

	if err := s.getAudioHash.QueryRow(path).Scan(&h.Hash, &h.LastUploadAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("state: get audio path hash: %w", err)
	}

	return &h, true, nil
}

func (s *SQLiteStore) PutAudioPathHash(h *AudioPathHash) error {
	if _, err := s.upsertAudioHash.Exec(h.Path, h.Hash, h.LastUploadAt); err != nil {
		return fmt.Errorf("state: put audio path hash: %w", err)
	}

	return nil
}

func (s *SQLiteStore) DeleteAudioPathHash(path string) error {
	if _, err := s.deleteAudioHash.Exec(path); err != nil {
		return fmt.Errorf("state: delete audio path hash: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
