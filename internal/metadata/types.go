// Package metadata is the HTTPS client for the control API: projects,
// songs, locks, sync receipts, the client-update feed, and object-store
// credential vending (spec.md §4.2).
package metadata

import "time"

// Project is a read-through copy of server-owned project state.
type Project struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Songs        []Song `json:"songs"`
	SyncEnabled  bool   `json:"sync_enabled"`
}

// Song is a read-through copy of server-owned song state.
type Song struct {
	ID            int    `json:"id"`
	Project       int    `json:"project"`
	Name          string `json:"name"`
	DirectoryName string `json:"directory_name,omitempty"`
	Revision      int    `json:"revision"`
	IsLocked      bool   `json:"is_locked"`
	SyncEnabled   bool   `json:"sync_enabled"`
	Archived      bool   `json:"archived"`
}

// Lock is the server's view of a project or song lock.
type Lock struct {
	ID       string     `json:"id,omitempty"`
	Status   string     `json:"status"`
	LockedBy string     `json:"locked_by"`
	Since    time.Time  `json:"since"`
	Until    *time.Time `json:"until,omitempty"`
	Reason   string     `json:"reason"`
}

// LockTarget selects what a lock/unlock call applies to: a project, or a
// specific song within it. A song lock is submitted against the containing
// project with SongID set (spec.md §4.2).
type LockTarget struct {
	ProjectID int
	SongID    int // zero means "the project itself"
}

// LockOptions are the optional parameters to lock/unlock.
type LockOptions struct {
	Force  bool
	Reason string
	Until  *time.Time
}

// Update is one entry in the client-update feed.
type Update struct {
	Version     string `json:"version"`
	URL         string `json:"url"`
	ReleaseNote string `json:"release_note"`
}

// ObjectStoreCredentials is the access/secret pair vended by
// get_object_store_credentials (spec.md §4.2), handed straight to
// internal/objectstore.Credentials.
type ObjectStoreCredentials struct {
	AccessKeyID     string `json:"access"`
	SecretAccessKey string `json:"secret"`
	SessionToken    string `json:"session_token,omitempty"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
}
