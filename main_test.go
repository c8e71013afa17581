package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/config"
	"librarydesk/library"
)

func TestRunExitsCleanly(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:    dir,
		Backend:    config.BackendFile,
		LoanPeriod: library.DefaultLoanPeriod,
		Passwords:  "plain",
		LogLevel:   "error",
		LogFile:    filepath.Join(dir, "library.log"),
	}
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	in := strings.NewReader("2\n1\ncarol\npw\n12\n3\n")
	require.NoError(t, run(context.Background(), cfg, in, &out))
	assert.Contains(t, out.String(), "Goodbye!")

	raw, err := os.ReadFile(filepath.Join(dir, "user.csv"))
	require.NoError(t, err)
	assert.Equal(t, "username,password,numberOfBooksRead\ncarol,pw,0\n", string(raw))
}

func TestRootCommandFlags(t *testing.T) {
	dir := t.TempDir()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("3\n"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--data-dir", dir, "--backend", "memory", "--log-file", filepath.Join(dir, "x.log")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRootCommandRejectsBadFlags(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	cmd.SetArgs([]string{"--backend", "tape"})
	assert.Error(t, cmd.Execute())

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
