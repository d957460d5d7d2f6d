package state

// Store is the interface the rest of the daemon depends on. All sync and
// dispatcher components operate against this interface rather than the
// concrete SQLite implementation, per the teacher's Store abstraction
// (internal/sync/types.go).
//
// The store is single-writer: only the dispatcher's consumer goroutine
// mutates SongState or settings (spec.md §5, "Shared-resource policy"). The
// audio watcher, which runs on its own goroutine, is the sole writer of
// AudioPathHash rows — those are independent of the dispatcher's critical
// section.
type Store interface {
	// Song state.
	GetSongState(projectID, songID int64) (*SongState, bool, error)
	PutSongState(s *SongState) error

	// Settings (arbitrary string key/value — source dir, audio-sync dir,
	// nested-folders flag, worker-pool width, telemetry path, last-known
	// version, etc.).
	GetSetting(key string) (string, bool, error)
	PutSetting(key, value string) error

	// Auth tokens.
	GetAuthTokens() (*AuthTokens, bool, error)
	PutAuthTokens(t *AuthTokens) error

	// Audio watcher path hashes.
	GetAudioPathHash(path string) (*AudioPathHash, bool, error)
	PutAudioPathHash(h *AudioPathHash) error
	DeleteAudioPathHash(path string) error

	Close() error
}
