package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/glicoflow/internal/config"
	"github.com/sakif/glicoflow/internal/repository/sqlite"
	"github.com/sakif/glicoflow/internal/server"
)

// startServer runs the real API on an in-memory database.
func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = sqlite.MemoryPath
	cfg.Auth.JWTSecret = "cli-test-secret-0123456789"
	cfg.Auth.BcryptCost = 4
	cfg.RateLimit.RPS = 0
	cfg.Metrics.Enabled = false

	srv, err := server.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts.URL
}

type harness struct {
	t         *testing.T
	serverURL string
	tokenPath string
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:         t,
		serverURL: startServer(t),
		tokenPath: filepath.Join(t.TempDir(), "token"),
	}
}

// run executes one command on a fresh command tree, as a new process would.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCmd("1.2.3", "2024-01-01")
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--server", h.serverURL, "--token-file", h.tokenPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	root := NewRootCmd("1.2.3", "2024-01-01")
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "glicoflow 1.2.3 (2024-01-01)\n", out.String())
}

func TestCLI_Session(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("secret1\n", "register", "alice", "--email", "alice@x.com")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Registered and logged in as alice")

	info, err := os.Stat(h.tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = h.run("", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "alice <alice@x.com>\n", out)

	out, err = h.run("", "add", "65", "--date", "2024-01-05", "--time", "07:00")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Saved 65 mg/dL on 2024-01-05 at 07:00 (low)")

	_, err = h.run("", "add", "135", "--date", "2024-01-05", "--time", "12:00")
	require.NoError(t, err)
	_, err = h.run("", "add", "200", "--date", "2024-01-06", "--time", "08:00")
	require.NoError(t, err)

	out, err = h.run("", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "2024-01-06")
	assert.Contains(t, lines[1], "high")

	out, err = h.run("", "list", "--from", "2024-01-06")
	require.NoError(t, err)
	assert.NotContains(t, out, "2024-01-05")

	out, err = h.run("", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Average: 133 mg/dL")
	assert.Contains(t, out, "Count:   3")
	assert.Contains(t, out, "Last:    200 mg/dL")

	out, err = h.run("", "daily")
	require.NoError(t, err)
	assert.Regexp(t, `2024-01-05\s+100\s+2`, out)
	assert.Regexp(t, `2024-01-06\s+200\s+1`, out)

	out, err = h.run("", "report", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "<!DOCTYPE html>")

	out, err = h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	_, err = os.Stat(h.tokenPath)
	assert.True(t, os.IsNotExist(err))

	_, err = h.run("", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	out, err = h.run("secret1\n", "login", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")
}

func TestCLI_RegisterTakenUsername(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("secret1\n", "register", "alice", "--email", "alice@x.com")
	require.NoError(t, err)

	_, err = h.run("secret1\n", "register", "alice", "--email", "other@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")
}

func TestCLI_PromptsWhenArgsMissing(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("bob\nbob@x.com\nsecret1\n", "register")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Username: ")
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Registered and logged in as bob")
}

func TestCLI_LoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("secret1\n", "register", "alice", "--email", "alice@x.com")
	require.NoError(t, err)

	_, err = h.run("nope-nope\n", "login", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incorrect password")
}

func TestCLI_AddDefaultsToNow(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("secret1\n", "register", "alice", "--email", "alice@x.com")
	require.NoError(t, err)

	orig := now
	now = func() time.Time { return time.Date(2024, 3, 9, 21, 5, 0, 0, time.Local) }
	defer func() { now = orig }()

	out, err := h.run("", "add", "110")
	require.NoError(t, err)
	assert.Contains(t, out, "on 2024-03-09 at 21:05")

	_, err = h.run("", "add", "abc")
	require.Error(t, err)
}
