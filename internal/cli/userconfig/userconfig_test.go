package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedServer(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	selected, err := GetSelectedServer()
	require.NoError(t, err)
	assert.Empty(t, selected)

	require.NoError(t, SetSelectedServer("https://portal.example.com"))
	require.NoError(t, SetLastRoute("https://portal.example.com", "/user/home"))

	selected, err = GetSelectedServer()
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com", selected)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/user/home", cfg.LastRoute("https://portal.example.com"))

	assert.FileExists(t, filepath.Join(home, ".config", "gridsight", "config.json"))
}

func TestLoad_Corrupt(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "gridsight")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "failed to parse user config file")
}

func TestLastRoute_PerServer(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	const (
		serverA = "https://a.example.com"
		serverB = "https://b.example.com"
	)

	route, err := GetLastRoute(serverA)
	require.NoError(t, err)
	assert.Empty(t, route)

	require.NoError(t, SetLastRoute(serverA, "/admin/users"))
	require.NoError(t, SetLastRoute(serverB, "/user/home"))
	require.NoError(t, SetSelectedServer(serverB))

	route, err = GetLastRoute(serverA)
	require.NoError(t, err)
	assert.Equal(t, "/admin/users", route)

	route, err = GetLastRoute(serverB)
	require.NoError(t, err)
	assert.Equal(t, "/user/home", route)

	route, err = GetLastRoute("https://c.example.com")
	require.NoError(t, err)
	assert.Empty(t, route, "a server never visited has no route")
}
