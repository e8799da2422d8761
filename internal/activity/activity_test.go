package activity

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/store"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestDiff(t *testing.T) {
	assert.Nil(t, Diff(map[string]Change{
		"title": {Old: "a", New: "a"},
	}))

	got := Diff(map[string]Change{
		"title":      {Old: "a", New: "b"},
		"importance": {Old: "normal", New: "normal"},
	})
	assert.Equal(t, map[string]any{"title": Change{Old: "a", New: "b"}}, got)
}

func TestLog_OwnAndDelegatedActions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	Log(ctx, st, quietLogger(), Event{OwnerID: "owner", ActorID: "owner", Action: CreatedTask, EntityID: "t1"})
	Log(ctx, st, quietLogger(), Event{OwnerID: "owner", ActorID: "helper", Action: UpdatedTask, EntityID: "t1"})
	Log(ctx, st, quietLogger(), Event{OwnerID: "", ActorID: "helper", Action: DeletedTask})

	owned, total, err := st.ListActivity(ctx, "owner", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, UpdatedTask, owned[0].Action)
	assert.Nil(t, owned[0].TargetOwnerID)

	mirrored, total, err := st.ListActivity(ctx, "helper", 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "helper", mirrored[0].ActorID)
	require.NotNil(t, mirrored[0].TargetOwnerID)
	assert.Equal(t, "owner", *mirrored[0].TargetOwnerID)
}

func TestListHandler_HugePage(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	u, err := st.CreateUser(ctx, store.User{Username: "pager", Email: "pager@example.com", IsActive: true})
	require.NoError(t, err)
	for i := range 3 {
		Log(ctx, st, quietLogger(), Event{OwnerID: u.ID, ActorID: u.ID, Action: CreatedTask, EntityID: strconv.Itoa(i)})
	}

	h := ListHandler(st, quietLogger())
	get := func(query string) map[string]any {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/activity?"+query, nil)
		req = req.WithContext(auth.WithUser(req.Context(), u))
		rec := httptest.NewRecorder()
		h(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	out := get("page=1&limit=2")
	assert.Len(t, out["logs"], 2)

	for _, q := range []string{"page=9223372036854775807", "page=9223372036854775807&limit=200", "page=4611686018427387905&limit=2"} {
		out = get(q)
		assert.Empty(t, out["logs"], q)
		pg := out["pagination"].(map[string]any)
		assert.Greater(t, pg["page"].(float64), 1.0, q)
		assert.Equal(t, 3.0, pg["total"], q)
	}
}
