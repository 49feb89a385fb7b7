package tui_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/aretw0/rux/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLines(t *testing.T) {
	var buf bytes.Buffer
	tui.Success(&buf, "snapshot %s is valid", "s1")
	tui.Failure(&buf, "%d errors", 2)
	tui.Info(&buf, "watching")

	out := buf.String()
	assert.Contains(t, out, "snapshot s1 is valid")
	assert.Contains(t, out, "2 errors")
	assert.Contains(t, out, "watching")
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, tui.IsTerminal(f))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3\n")
	assert.Contains(t, buf.String(), "v1.2.3")
}

func TestNewRenderer(t *testing.T) {
	out, err := tui.NewRenderer()("# Camera")
	require.NoError(t, err)
	assert.Contains(t, out, "Camera")
}
