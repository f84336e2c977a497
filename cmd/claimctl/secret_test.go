package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newTestContext(t *testing.T, secretKeyFile string, stdin bool) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("secret-key-file", secretKeyFile, "")
	set.Bool("stdin", stdin, "")
	require.NoError(t, set.Parse(nil))
	return cli.NewContext(nil, set, nil)
}

func TestReadSecretKeyFromEnv(t *testing.T) {
	t.Setenv("ZKCLAIM_SECRET_KEY", "12345")
	c := newTestContext(t, "", false)
	got, err := readSecretKey(c)
	require.NoError(t, err)
	assert.Equal(t, "12345", got.Value.String())
}

func TestReadSecretKeyFromFileRejectsLoosePermissions(t *testing.T) {
	t.Setenv("ZKCLAIM_SECRET_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "sk")
	require.NoError(t, os.WriteFile(path, []byte("12345\n"), 0644))

	c := newTestContext(t, path, false)
	_, err := readSecretKey(c)
	assert.Error(t, err)
}

func TestReadSecretKeyFromFileAcceptsOwnerOnlyPermissions(t *testing.T) {
	t.Setenv("ZKCLAIM_SECRET_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "sk")
	require.NoError(t, os.WriteFile(path, []byte("12345\n"), 0600))

	c := newTestContext(t, path, false)
	got, err := readSecretKey(c)
	require.NoError(t, err)
	assert.Equal(t, "12345", got.Value.String())
}

func TestReadSecretKeyNoSourceGiven(t *testing.T) {
	t.Setenv("ZKCLAIM_SECRET_KEY", "")
	c := newTestContext(t, "", false)
	_, err := readSecretKey(c)
	assert.Error(t, err)
}
