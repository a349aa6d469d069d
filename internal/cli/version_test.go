package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/dbhelper/pkg/version"
)

func TestVersionCommand(t *testing.T) {
	resetGlobals(t)

	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "Show version information", versionCmd.Short)

	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.FullInfo(), stdout)
}
