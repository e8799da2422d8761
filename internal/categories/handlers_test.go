package categories

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shared-tasks-backend/internal/activity"
	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/store"
)

type fixture struct {
	t      *testing.T
	st     *store.Memory
	logger *log.Logger
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, st: store.NewMemory(), logger: log.New(io.Discard, "", 0)}
}

func (f *fixture) user(name string) store.User {
	f.t.Helper()
	u, err := f.st.CreateUser(context.Background(), store.User{Username: name, Email: name + "@example.com", IsActive: true})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) call(h http.HandlerFunc, method string, as store.User, id string, body string) (int, map[string]any) {
	f.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, "/categories/"+id, rdr)
	req.SetPathValue("id", id)
	req = req.WithContext(auth.WithUser(req.Context(), as))
	rec := httptest.NewRecorder()
	h(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (f *fixture) create(as store.User, body string) string {
	f.t.Helper()
	status, out := f.call(CreateHandler(f.st, f.logger), http.MethodPost, as, "", body)
	require.Equal(f.t, http.StatusCreated, status, out)
	return out["category"].(map[string]any)["id"].(string)
}

func TestUpdateHandler(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	helper := f.user("helper")
	update := UpdateHandler(f.st, f.logger)

	workID := f.create(owner, `{"name":"Work","icon":"briefcase"}`)
	f.create(owner, `{"name":"Home"}`)

	_, err := f.st.CreateDelegation(context.Background(), store.Delegation{
		OwnerID: owner.ID, DelegateID: helper.ID, Status: store.DelegationAccepted, CanCreateCategories: true,
	})
	require.NoError(t, err)

	status, out := f.call(update, http.MethodPut, helper, workID, `{"name":"Mine"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "only the owner can edit this category", out["error"])

	status, out = f.call(update, http.MethodPut, owner, workID, `{"name":"HOME"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "a category with this name already exists", out["error"])

	status, _ = f.call(update, http.MethodPut, owner, workID, `{"color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.call(update, http.MethodPut, owner, "missing", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, out = f.call(update, http.MethodPut, owner, workID, `{"color":"#00ff00"}`)
	require.Equal(t, http.StatusOK, status, out)
	cat := out["category"].(map[string]any)
	assert.Equal(t, "briefcase", cat["icon"], "absent icon is left alone")
	assert.Equal(t, "#00ff00", cat["color"])

	status, out = f.call(update, http.MethodPut, owner, workID, `{"name":"Office","icon":null}`)
	require.Equal(t, http.StatusOK, status, out)
	cat = out["category"].(map[string]any)
	assert.Equal(t, "Office", cat["name"])
	assert.Nil(t, cat["icon"])
	assert.Contains(t, cat, "icon")
}

func TestUpdateAndDeleteAreLogged(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	other := f.user("other")
	id := f.create(owner, `{"name":"Work"}`)

	status, _ := f.call(UpdateHandler(f.st, f.logger), http.MethodPut, owner, id, `{"name":"Office"}`)
	require.Equal(t, http.StatusOK, status)

	status, out := f.call(DeleteHandler(f.st, f.logger), http.MethodDelete, other, id, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "only the owner can delete this category", out["error"])

	status, _ = f.call(DeleteHandler(f.st, f.logger), http.MethodDelete, owner, id, "")
	require.Equal(t, http.StatusNoContent, status)

	entries, total, err := f.st.ListActivity(context.Background(), owner.ID, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	assert.Equal(t, activity.DeletedCategory, entries[0].Action)
	assert.Equal(t, "Office", entries[0].EntityTitle)
	assert.Equal(t, activity.UpdatedCategory, entries[1].Action)
	assert.Equal(t, activity.CreatedCategory, entries[2].Action)
	for _, e := range entries {
		assert.Equal(t, store.EntityCategory, e.EntityType)
		assert.Equal(t, id, e.EntityID)
	}

	status, _ = f.call(GetHandler(f.st, f.logger), http.MethodGet, owner, id, "")
	assert.Equal(t, http.StatusNotFound, status)
}
