package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessNameDAWChecker_DetectsConfiguredName(t *testing.T) {
	checker := &ProcessNameDAWChecker{
		Names:         []string{"Cubase13.exe"},
		listProcesses: func() (string, error) { return "explorer.exe\ncubase13.exe\n", nil },
	}

	running, err := checker.IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
}

func TestProcessNameDAWChecker_NoMatchReturnsFalse(t *testing.T) {
	checker := &ProcessNameDAWChecker{
		Names:         []string{"Cubase13.exe"},
		listProcesses: func() (string, error) { return "explorer.exe\n", nil },
	}

	running, err := checker.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)
}
