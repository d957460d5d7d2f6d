package reconcile

import (
	"context"
	"fmt"

	"github.com/k3an3/syncprojectsd/internal/metadata"
)

// Resolve applies user-facing policy on top of the raw verdict table:
// CONFLICT is handed to the user (keep-local/keep-remote/skip), and an
// archived song's LOCAL verdict is refused — the user either confirms
// downgrading to REMOTE (accepting the remote copy over local edits) or
// the song is left untouched (spec.md §4.4).
func Resolve(ctx context.Context, verdict Verdict, song metadata.Song, songName string, prompter ConflictPrompter) (Verdict, error) {
	if verdict == CONFLICT {
		if prompter == nil {
			return NONE, fmt.Errorf("reconcile: conflict on %q with no prompter available", songName)
		}

		choice, err := prompter.PromptConflict(ctx, songName)
		if err != nil {
			return NONE, fmt.Errorf("reconcile: conflict prompt for %q: %w", songName, err)
		}

		switch choice {
		case ChoiceKeepLocal:
			verdict = LOCAL
		case ChoiceKeepRemote:
			verdict = REMOTE
		default:
			return NONE, nil
		}
	}

	if verdict == LOCAL && song.Archived {
		if prompter == nil {
			return NONE, fmt.Errorf("reconcile: archived-song overwrite on %q with no prompter available", songName)
		}

		confirmed, err := prompter.ConfirmArchivedOverwrite(ctx, songName)
		if err != nil {
			return NONE, fmt.Errorf("reconcile: archived overwrite prompt for %q: %w", songName, err)
		}

		if confirmed {
			return REMOTE, nil
		}

		return NONE, nil
	}

	return verdict, nil
}
