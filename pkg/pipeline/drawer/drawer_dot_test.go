package drawer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/drawer"
)

func newDrawer(t *testing.T, fileName string) *drawer.DOTDrawer {
	t.Helper()

	d := drawer.NewDOTDrawer(fileName)
	require.NoError(t, d.AddStep("regions"))
	require.NoError(t, d.AddStep("layout"))
	require.NoError(t, d.AddStep("layout"))
	require.NoError(t, d.AddLink("regions", "layout"))
	require.NoError(t, d.AddLink("regions", "layout"))

	return d
}

func TestDOTDrawerDraw(t *testing.T) {
	t.Parallel()

	fileName := filepath.Join(t.TempDir(), "run.dot")
	require.NoError(t, newDrawer(t, fileName).Draw())

	content, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Contains(t, string(content), "strict digraph {")
	assert.Contains(t, string(content), `"regions" -> "layout" [ weight=0 ];`)
}

func TestDOTDrawerDrawErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]string{
		"missing directory": filepath.Join(t.TempDir(), "missing", "run.dot"),
		"no space left":     "/dev/full",
	}

	for name, fileName := range tcs {
		name, fileName := name, fileName
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if fileName == "/dev/full" {
				if _, err := os.Stat(fileName); err != nil {
					t.Skip("/dev/full is not available")
				}
			}

			assert.Error(t, newDrawer(t, fileName).Draw())
		})
	}
}
