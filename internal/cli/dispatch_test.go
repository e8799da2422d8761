package cli_test

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shared-tasks-backend/internal/cli"
	"shared-tasks-backend/internal/exitcode"
	"shared-tasks-backend/internal/scenario"
	"shared-tasks-backend/internal/server"
	"shared-tasks-backend/internal/store"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func run(t *testing.T, vars map[string]string, args ...string) (int, string, string) {
	t.Helper()
	d := cli.NewDispatcher(scenario.Default, env(vars))
	var stdout, stderr bytes.Buffer
	code := d.Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func apiServer(t *testing.T) string {
	t.Helper()
	h, err := server.NewHandler(server.Options{
		Store:      store.NewMemory(),
		JWTSecret:  []byte("cli-secret"),
		BcryptCost: bcrypt.MinCost,
		Logger:     log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL + "/api/v1"
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	code, _, stderr := run(t, nil, "unknowncmd")
	assert.Equal(t, exitcode.UsageError, code)
	assert.Equal(t, "error: unknown command: unknowncmd\n", stderr)
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	code, _, stderr := run(t, nil, "-verbose", "list")
	assert.Equal(t, exitcode.UsageError, code)
	assert.Equal(t, "error: unknown flag: -verbose\n", stderr)
}

func TestDispatcher_HelpAndVersion(t *testing.T) {
	code, stdout, stderr := run(t, nil, "help")
	assert.Equal(t, exitcode.Success, code)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "run")

	code, stdout, _ = run(t, nil, "version")
	assert.Equal(t, exitcode.Success, code)
	assert.Equal(t, "smoke "+cli.Version+"\n", stdout)
}

func TestDispatcher_ListIsDefault(t *testing.T) {
	code, stdout, _ := run(t, nil)
	assert.Equal(t, exitcode.Success, code)
	for _, name := range []string{"activity-log", "default-context", "delegation", "delegation-fixed-users"} {
		assert.Contains(t, stdout, name)
	}
}

func TestDispatcher_RunArgs(t *testing.T) {
	code, _, stderr := run(t, nil, "run")
	assert.Equal(t, exitcode.UsageError, code)
	assert.Contains(t, stderr, "run needs")

	code, _, stderr = run(t, nil, "run", "nope")
	assert.Equal(t, exitcode.UsageError, code)
	assert.Equal(t, "error: unknown scenario: nope\n", stderr)
}

func TestDispatcher_ConfigErrors(t *testing.T) {
	code, _, stderr := run(t, nil, "-config", filepath.Join(t.TempDir(), "missing.yaml"), "list")
	assert.Equal(t, exitcode.ConfigError, code)
	assert.Contains(t, stderr, "read config")

	code, _, _ = run(t, nil, "-base-url", "ftp://x", "list")
	assert.Equal(t, exitcode.ConfigError, code)

	code, _, _ = run(t, map[string]string{"SMOKE_TIMEOUT": "soon"}, "list")
	assert.Equal(t, exitcode.ConfigError, code)
}

func TestDispatcher_RunPasses(t *testing.T) {
	base := apiServer(t)
	code, stdout, stderr := run(t, nil, "-base-url", base, "run", "default-context", "activity-log")
	assert.Equal(t, exitcode.Success, code, stdout+stderr)
	assert.Contains(t, stdout, "PASS  default-context")
	assert.Contains(t, stdout, "PASS  activity-log")
	assert.Contains(t, stdout, "2 scenario(s), 0 failed, 0 skipped")
}

func TestDispatcher_RunAllQuietFromEnv(t *testing.T) {
	base := apiServer(t)
	code, stdout, _ := run(t, map[string]string{"SMOKE_BASE_URL": base, "SMOKE_QUIET": "true"}, "run", "all")
	assert.Equal(t, exitcode.Success, code, stdout)
	assert.NotContains(t, stdout, "===")
	assert.Contains(t, stdout, "4 scenario(s), 0 failed")
}

func TestDispatcher_RunFailsAgainstBrokenAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"down"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	code, stdout, _ := run(t, nil, "-base-url", srv.URL, "run", "delegation")
	assert.Equal(t, exitcode.ScenarioFailure, code)
	assert.Contains(t, stdout, "ABORT delegation")
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: http://yaml:3000/api/v1\npassword: fromyaml\ntimeout: 5s\n"), 0o600))

	cfg, err := cli.LoadConfig("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, cli.DefaultConfig(), cfg)

	cfg, err = cli.LoadConfig(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://yaml:3000/api/v1", cfg.BaseURL)
	assert.Equal(t, "fromyaml", cfg.Password)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	cfg, err = cli.LoadConfig(path, env(map[string]string{"SMOKE_BASE_URL": "http://env/api/v1", "SMOKE_TIMEOUT": "12"}))
	require.NoError(t, err)
	assert.Equal(t, "http://env/api/v1", cfg.BaseURL)
	assert.Equal(t, "fromyaml", cfg.Password)
	assert.Equal(t, 12*time.Second, cfg.Timeout)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("timeout: [1, 2"), 0o600))
	_, err = cli.LoadConfig(bad, env(nil))
	assert.Error(t, err)
}

func TestDispatcher_FlagBeatsEnv(t *testing.T) {
	base := apiServer(t)
	code, stdout, _ := run(t, map[string]string{"SMOKE_BASE_URL": "http://127.0.0.1:1/api/v1"},
		"-base-url", base, "-quiet", "run", "default-context")
	assert.Equal(t, exitcode.Success, code, stdout)
}
