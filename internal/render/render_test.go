package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML_Embedded(t *testing.T) {
	e, err := NewEngine("")
	require.NoError(t, err)
	require.NoError(t, Initialize(e))

	out, err := RenderHTML("auth-callback", map[string]interface{}{
		"userId":       "alice",
		"closeDelayMs": 2000,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Authentication Successful!")
	assert.Contains(t, out, `const userId = "alice";`)
	assert.Contains(t, out, "AUTH_SUCCESS")
}

func TestRenderHTML_EscapesUserIdentifier(t *testing.T) {
	e, err := NewEngine("")
	require.NoError(t, err)
	require.NoError(t, Initialize(e))

	out, err := RenderHTML("auth-callback", map[string]interface{}{
		"userId":       "</script><script>alert(1)</script>",
		"closeDelayMs": 2000,
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>alert(1)</script>")
}

func TestRenderHTML_TemplateDirOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth-callback.html"), []byte("OVERRIDE {{.userId}}"), 0o644))

	e, err := NewEngine(dir)
	require.NoError(t, err)
	require.NoError(t, Initialize(e))

	out, err := RenderHTML("auth-callback", map[string]interface{}{"userId": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "OVERRIDE bob", out)
}

func TestNewEngine_MissingDir(t *testing.T) {
	_, err := NewEngine(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
