package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCfgPath(t *testing.T) {
	// panic on empty
	assert.Panics(t, func() { GetCfgPath("") })

	// absolute path returns as-is
	abs := "/tmp/realtime.yaml"
	assert.Equal(t, abs, GetCfgPath(abs))

	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })

	tmp := t.TempDir()
	_ = os.Chdir(tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))

	// file in current directory
	f1 := "realtime.yaml"
	assert.NoError(t, os.WriteFile(f1, []byte("x"), 0o644))
	exp, _ := filepath.EvalSymlinks(filepath.Join(tmp, f1))
	got, _ := filepath.EvalSymlinks(GetCfgPath(f1))
	assert.Equal(t, exp, got)

	// ./configs is next
	_ = os.Remove(filepath.Join(tmp, f1))
	_ = os.MkdirAll("configs", 0o755)
	assert.NoError(t, os.WriteFile(filepath.Join("configs", f1), []byte("x"), 0o644))
	exp, _ = filepath.EvalSymlinks(filepath.Join(tmp, "configs", f1))
	got, _ = filepath.EvalSymlinks(GetCfgPath(f1))
	assert.Equal(t, exp, got)

	// then the user config dir
	_ = os.Remove(filepath.Join(tmp, "configs", f1))
	userDir := filepath.Join(tmp, "xdg", "hublink")
	_ = os.MkdirAll(userDir, 0o755)
	assert.NoError(t, os.WriteFile(filepath.Join(userDir, f1), []byte("x"), 0o644))
	exp, _ = filepath.EvalSymlinks(filepath.Join(userDir, f1))
	got, _ = filepath.EvalSymlinks(GetCfgPath(f1))
	assert.Equal(t, exp, got)

	// fallback when not found
	_ = os.Remove(filepath.Join(userDir, f1))
	assert.Equal(t, filepath.Join(SystemConfigDir, f1), GetCfgPath(f1))
}
