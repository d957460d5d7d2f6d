// Package state implements the local, durable key/value store that backs
// per-song sync bookkeeping, application settings, and the cached auth
// token — the single-process SQLite store specified in spec.md §2.3 and
// §6 ("Durable state"). It follows the teacher's embedded-migrations,
// prepared-statement SQLiteStore shape (internal/sync/state.go) scaled down
// to this daemon's much smaller schema.
package state

// SongState is the local, durable record of a song's last-known sync
// position: the server revision observed at the time of the last successful
// sync, and the content hash of the song's top-level session files as of
// that sync (spec.md §3).
type SongState struct {
	ProjectID int64
	SongID    int64
	Revision  int64
	KnownHash string
	UpdatedAt int64 // Unix nanoseconds
}

// AuthTokens is the cached bearer/refresh token pair and the last-known
// username, persisted across restarts so the daemon need not re-prompt for
// credentials on every launch.
type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiryUnix   int64 // Unix seconds, 0 = unknown/never fetched
	Username     string
}

// AudioPathHash is the audio watcher's per-path bookkeeping: the last
// content hash uploaded for a path, and when that upload happened (used to
// enforce the ten-second minimum interval between uploads of the same path).
type AudioPathHash struct {
	Path         string
	Hash         string
	LastUploadAt int64 // Unix nanoseconds
}
