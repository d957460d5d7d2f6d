package reconcile

import (
	"context"
	"fmt"

	"github.com/k3an3/syncprojectsd/internal/hashing"
	"github.com/k3an3/syncprojectsd/internal/objectstore"
)

// ampPresetPrefixFmt mirrors the key layout spec.md §6 names but does not
// itself specify an operation for: "<project_id>/Amp Settings/<amp>/".
const ampPresetPrefixFmt = "%d/Amp Settings/"

// SyncAmpPresets pushes local Neural DSP amp-preset files not present (or
// changed) remotely, and pulls remote ones missing locally — a plain
// bidirectional merge rather than a revision-tracked reconciliation, since
// presets carry no lock/revision bookkeeping of their own (SPEC_FULL.md
// supplemented feature, grounded on
// original_source/syncprojects/sync/backends/__init__.py's
// push_amp_settings/pull_amp_settings stubs, implemented fully here).
func SyncAmpPresets(ctx context.Context, store objectstore.Client, ampPresetDir string, projectID int, width int) (TransferResult, error) {
	prefix := fmt.Sprintf(ampPresetPrefixFmt, projectID)

	remote, err := RemoteManifest(ctx, store, prefix)
	if err != nil {
		return TransferResult{}, fmt.Errorf("reconcile: amp preset remote manifest: %w", err)
	}

	local, err := hashing.WalkDir(ampPresetDir)
	if err != nil {
		return TransferResult{}, fmt.Errorf("reconcile: amp preset local manifest: %w", err)
	}

	uploadKeys := hashing.Diff(local, remote)
	downloadKeys := hashing.Diff(remote, local)

	up := RunTransfers(ctx, store, ampPresetDir, prefix, uploadKeys, Upload, width)
	down := RunTransfers(ctx, store, ampPresetDir, prefix, downloadKeys, Download, width)

	return TransferResult{
		Transferred: up.Transferred + down.Transferred,
		Failed:      up.Failed + down.Failed,
		Errors:      append(up.Errors, down.Errors...),
	}, nil
}
