package reconcile

import "context"

// ConflictChoice is the user's resolution of a CONFLICT verdict
// (spec.md §4.4: "keep-local → LOCAL, keep-remote → REMOTE, skip → NONE").
type ConflictChoice int

const (
	ChoiceSkip ConflictChoice = iota
	ChoiceKeepLocal
	ChoiceKeepRemote
)

// ConflictPrompter is the external "user-prompt" capability (spec.md §1)
// asked to resolve a CONFLICT verdict, and to confirm downgrading an
// archived song's LOCAL verdict to REMOTE.
type ConflictPrompter interface {
	PromptConflict(ctx context.Context, songName string) (ConflictChoice, error)
	ConfirmArchivedOverwrite(ctx context.Context, songName string) (bool, error)
}

// ChangelogPrompter collects a changelog note before a LOCAL push
// (SPEC_FULL.md supplemented feature, grounded on
// original_source/syncprojects/operations.py:changelog). The note is
// stored as a sidecar field on the sync receipt.
type ChangelogPrompter interface {
	PromptChangelog(ctx context.Context, songName string) (note string, err error)
}
