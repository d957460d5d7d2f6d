package external

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OSFileOpener opens a path with the platform default application, the Go
// equivalent of the teacher domain's os.startfile/open/xdg-open trio
// (original_source's system.py:open_default_app).
type OSFileOpener struct{}

var _ FileOpener = OSFileOpener{}

func (OSFileOpener) Open(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("external: opening %s with default application: %w", path, err)
	}

	return nil
}
