package external

import (
	"bytes"
	"os/exec"
	"runtime"
	"strings"
)

// ProcessNameDAWChecker reports whether any of a configured set of DAW
// process names currently appear in the OS process list (SPEC_FULL.md
// supplemented feature: "DAW-running guard", grounded on original_source's
// utils.py:check_daw_running, referenced from sync/__init__.py:run_tui
// before a one-shot sync). No process-enumeration library appears anywhere
// in the example pack, so this shells out to the platform's own listing
// tool (tasklist/ps) rather than adding an unexercised third-party
// dependency for a single non-fatal advisory check.
type ProcessNameDAWChecker struct {
	Names []string

	// listProcesses is overridden in tests; defaults to the platform tool.
	listProcesses func() (string, error)
}

var _ DAWChecker = &ProcessNameDAWChecker{}

func NewProcessNameDAWChecker(names []string) *ProcessNameDAWChecker {
	return &ProcessNameDAWChecker{Names: names, listProcesses: listProcessesViaOS}
}

func (c *ProcessNameDAWChecker) IsRunning() (bool, error) {
	list := c.listProcesses
	if list == nil {
		list = listProcessesViaOS
	}

	listing, err := list()
	if err != nil {
		return false, err
	}

	listing = strings.ToLower(listing)

	for _, name := range c.Names {
		if strings.Contains(listing, strings.ToLower(name)) {
			return true, nil
		}
	}

	return false, nil
}

func listProcessesViaOS() (string, error) {
	var out bytes.Buffer

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("tasklist")
	} else {
		cmd = exec.Command("ps", "-A", "-o", "comm=")
	}

	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", err
	}

	return out.String(), nil
}
