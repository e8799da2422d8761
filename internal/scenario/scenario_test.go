package scenario

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shared-tasks-backend/internal/client"
	"shared-tasks-backend/internal/server"
	"shared-tasks-backend/internal/store"
)

func newAPI(t *testing.T) *client.Client {
	t.Helper()
	h, err := server.NewHandler(server.Options{
		Store:      store.NewMemory(),
		JWTSecret:  []byte("scenario-secret"),
		BcryptCost: bcrypt.MinCost,
		Logger:     log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return client.New(srv.URL+"/api/v1", srv.Client())
}

func runNamed(t *testing.T, api *client.Client, name string) (Result, string) {
	t.Helper()
	s, ok := Default.Find(name)
	require.True(t, ok, name)
	var buf bytes.Buffer
	res := Run(context.Background(), s, NewEnv(api, NewPrinter(&buf, false), ""))
	return res, buf.String()
}

func TestBuiltinScenariosPass(t *testing.T) {
	for _, s := range Default.All() {
		t.Run(s.Name, func(t *testing.T) {
			api := newAPI(t)
			res, out := runNamed(t, api, s.Name)
			require.NoError(t, res.Err, out)
			assert.NotEmpty(t, res.Checks)
			assert.Zero(t, res.Failed(), out)
			assert.True(t, res.OK())
			assert.NotContains(t, out, "[FAIL]")
		})
	}
}

func TestRegistryOrderAndNames(t *testing.T) {
	var names []string
	for _, s := range Default.All() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"activity-log", "default-context", "delegation", "delegation-fixed-users"}, names)

	err := Default.Register(Scenario{Name: "delegation", Run: delegationFresh})
	assert.Error(t, err)
}

func TestActivityLogOutput(t *testing.T) {
	res, out := runNamed(t, newAPI(t), "activity-log")
	require.True(t, res.OK(), out)

	assert.Contains(t, out, "=== Activity log with entries on both sides ===")
	assert.Contains(t, out, "\n7. Alice's activity log (owner):\n")
	assert.Contains(t, out, "  - Bob Dupont created_task 'Task created by Bob for Alice'\n")
	assert.Contains(t, out, "  - Bob Dupont (you) created_category 'Bob's category' for Alice Martin\n")
}

func TestFixedUsersRerunSignsIn(t *testing.T) {
	api := newAPI(t)

	first, out := runNamed(t, api, "delegation-fixed-users")
	require.True(t, first.OK(), out)

	second, out := runNamed(t, api, "delegation-fixed-users")
	require.NoError(t, second.Err, out)
	assert.Zero(t, second.Failed(), out)
	assert.Contains(t, out, "Signed in as existing user olivier_deleg")
	assert.Contains(t, out, "Already accepted")
}

func TestDelegationRepeatedOnOneServer(t *testing.T) {
	api := newAPI(t)

	for i := range 12 {
		res, out := runNamed(t, api, "delegation")
		require.NoError(t, res.Err, out)
		require.True(t, res.OK(), "run %d:\n%s", i+1, out)
	}

	res, out := runNamed(t, api, "delegation-fixed-users")
	require.NoError(t, res.Err, out)
	assert.True(t, res.OK(), out)
	assert.Contains(t, out, "Users found: 10")
}

func TestAbortWithoutServer(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	res, out := runNamed(t, client.New(url, nil), "activity-log")
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, ErrAborted))
	assert.False(t, res.OK())
	assert.Contains(t, out, "[ABORT]")
}

func TestQuietPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	p.Title("t")
	p.Step(1, "step")
	p.Info("detail %d", 1)
	assert.True(t, p.Check("fine", true, ""))
	assert.False(t, p.Check("broken", false, "why"))

	assert.Equal(t, "  [FAIL] broken (why)\n", buf.String())
	assert.Len(t, p.Checks(), 2)
}
