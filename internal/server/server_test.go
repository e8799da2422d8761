package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shared-tasks-backend/internal/store"
)

type apiTest struct {
	t   *testing.T
	srv *httptest.Server
}

func newAPI(t *testing.T) *apiTest {
	t.Helper()
	return newAPIWith(t, Options{})
}

// newAPIWith fills the store, secret, cost and logger left empty in opts.
func newAPIWith(t *testing.T, opts Options) *apiTest {
	t.Helper()
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.JWTSecret == nil {
		opts.JWTSecret = []byte("test-secret")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	h, err := NewHandler(opts)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &apiTest{t: t, srv: srv}
}

func (a *apiTest) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+"/api/v1"+path, rdr)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

type account struct {
	ID    string
	Token string
}

func (a *apiTest) register(name string) account {
	a.t.Helper()
	status, out := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret1",
	})
	require.Equal(a.t, http.StatusCreated, status, out)
	return account{ID: out["user"].(map[string]any)["id"].(string), Token: out["token"].(string)}
}

// delegate sets up an accepted delegation from owner to delegate.
func (a *apiTest) delegate(owner, delegate account, perms map[string]any) string {
	a.t.Helper()
	body := map[string]any{"delegateId": delegate.ID}
	for k, v := range perms {
		body[k] = v
	}
	status, out := a.do(http.MethodPost, "/delegations", owner.Token, body)
	require.Equal(a.t, http.StatusCreated, status, out)
	id := out["delegation"].(map[string]any)["id"].(string)

	status, out = a.do(http.MethodPost, "/delegations/"+id+"/accept", delegate.Token, nil)
	require.Equal(a.t, http.StatusOK, status, out)
	assert.Equal(a.t, "accepted", out["delegation"].(map[string]any)["status"])
	return id
}

func TestHealthAndNotFound(t *testing.T) {
	api := newAPI(t)

	resp, err := http.Get(api.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, out := api.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "route not found", out["error"])

	status, out = api.do(http.MethodGet, "/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, out["error"])
}

func TestTaskLifecycle(t *testing.T) {
	api := newAPI(t)
	alice := api.register("alice")

	status, out := api.do(http.MethodPost, "/categories", alice.Token, map[string]any{"name": "Work"})
	require.Equal(t, http.StatusCreated, status, out)
	cat := out["category"].(map[string]any)
	assert.Equal(t, store.DefaultCategoryColor, cat["color"])

	status, _ = api.do(http.MethodPost, "/categories", alice.Token, map[string]any{"name": "work"})
	assert.Equal(t, http.StatusConflict, status)

	status, out = api.do(http.MethodPost, "/tasks", alice.Token, map[string]any{
		"title": "Ship release", "importance": "high", "categoryId": cat["id"], "dueDate": "2030-05-01",
	})
	require.Equal(t, http.StatusCreated, status, out)
	task := out["task"].(map[string]any)
	taskID := task["id"].(string)
	assert.Equal(t, "Work", task["category"].(map[string]any)["name"])

	status, _ = api.do(http.MethodPost, "/tasks", alice.Token, map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = api.do(http.MethodPatch, "/tasks/"+taskID+"/complete", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", out["task"].(map[string]any)["status"])
	assert.NotNil(t, out["task"].(map[string]any)["completedAt"])

	status, out = api.do(http.MethodGet, "/tasks/stats", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["completed_tasks"])
	assert.Equal(t, 100.0, out["completion_rate"])

	status, out = api.do(http.MethodPatch, "/tasks/"+taskID+"/reopen", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, out["task"].(map[string]any)["completedAt"])

	status, out = api.do(http.MethodGet, "/tasks?categoryId=none", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, out["total"])

	status, out = api.do(http.MethodGet, "/tasks?search=SHIP", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["total"])
	assert.Equal(t, 50.0, out["limit"])

	status, _ = api.do(http.MethodDelete, "/categories/"+cat["id"].(string), alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, out = api.do(http.MethodGet, "/tasks/"+taskID, alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, out["task"].(map[string]any)["categoryId"])

	status, _ = api.do(http.MethodDelete, "/tasks/"+taskID, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.do(http.MethodGet, "/tasks/"+taskID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDelegatedPermissions(t *testing.T) {
	api := newAPI(t)
	owner := api.register("owner")
	helper := api.register("helper")
	stranger := api.register("stranger")

	delegationID := api.delegate(owner, helper, map[string]any{"canCreateTasks": true, "canEditTasks": true, "canDeleteTasks": true})

	status, out := api.do(http.MethodPost, "/tasks", helper.Token, map[string]any{"title": "Buy milk", "ownerId": owner.ID})
	require.Equal(t, http.StatusCreated, status, out)
	taskID := out["task"].(map[string]any)["id"].(string)
	assert.Equal(t, owner.ID, out["task"].(map[string]any)["userId"])

	status, _ = api.do(http.MethodPost, "/tasks", stranger.Token, map[string]any{"title": "Nope", "ownerId": owner.ID})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodGet, "/tasks/"+taskID, stranger.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodPut, "/tasks/"+taskID, helper.Token, map[string]any{"title": "Buy oat milk"})
	assert.Equal(t, http.StatusOK, status)

	status, out = api.do(http.MethodPatch, "/delegations/"+delegationID, owner.Token, map[string]any{"canDeleteTasks": false})
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, false, out["delegation"].(map[string]any)["canDeleteTasks"])
	assert.Equal(t, true, out["delegation"].(map[string]any)["canEditTasks"])

	status, out = api.do(http.MethodDelete, "/tasks/"+taskID, helper.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, out["error"], "delete")

	status, _ = api.do(http.MethodPut, "/delegations/"+delegationID, helper.Token, map[string]any{"canDeleteTasks": true})
	assert.Equal(t, http.StatusNotFound, status, "only the owner may change permissions")

	status, _ = api.do(http.MethodPost, "/categories", helper.Token, map[string]any{"name": "Errands", "ownerId": owner.ID})
	assert.Equal(t, http.StatusForbidden, status)

	status, out = api.do(http.MethodGet, "/delegations/"+owner.ID+"/tasks", helper.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["tasks"], 1)
	assert.Equal(t, false, out["permissions"].(map[string]any)["canDeleteTasks"])

	status, _ = api.do(http.MethodGet, "/delegations/"+owner.ID+"/tasks", stranger.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, out = api.do(http.MethodPost, "/delegations/"+delegationID+"/leave", helper.Token, nil)
	require.Equal(t, http.StatusOK, status, out)
	status, _ = api.do(http.MethodGet, "/tasks?ownerId="+owner.ID, helper.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestHiddenCategories(t *testing.T) {
	api := newAPI(t)
	owner := api.register("hider")
	helper := api.register("seeker")

	status, out := api.do(http.MethodPost, "/categories", owner.Token, map[string]any{"name": "Private", "color": "#ff0000"})
	require.Equal(t, http.StatusCreated, status, out)
	secretID := out["category"].(map[string]any)["id"].(string)

	status, out = api.do(http.MethodPost, "/tasks", owner.Token, map[string]any{"title": "Secret", "categoryId": secretID})
	require.Equal(t, http.StatusCreated, status, out)
	secretTask := out["task"].(map[string]any)["id"].(string)
	status, _ = api.do(http.MethodPost, "/tasks", owner.Token, map[string]any{"title": "Public"})
	require.Equal(t, http.StatusCreated, status)

	api.delegate(owner, helper, map[string]any{"canCreateTasks": true, "hiddenCategoryIds": []string{secretID}})

	status, out = api.do(http.MethodGet, "/tasks?ownerId="+owner.ID, helper.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["total"])

	status, out = api.do(http.MethodGet, "/tasks?ownerId="+owner.ID+"&categoryId="+secretID, helper.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, out["total"])

	status, out = api.do(http.MethodGet, "/categories?ownerId="+owner.ID, helper.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["categories"])

	status, _ = api.do(http.MethodGet, "/tasks/"+secretTask, helper.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodPost, "/tasks", helper.Token, map[string]any{"title": "Sneaky", "ownerId": owner.ID, "categoryId": secretID})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodGet, "/categories/"+secretID, helper.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestActivityDoubleLogging(t *testing.T) {
	api := newAPI(t)
	owner := api.register("logowner")
	helper := api.register("loghelper")
	api.delegate(owner, helper, map[string]any{"canCreateTasks": true, "canEditTasks": true})

	status, out := api.do(http.MethodPost, "/tasks", owner.Token, map[string]any{"title": "Own task"})
	require.Equal(t, http.StatusCreated, status)
	status, out = api.do(http.MethodPost, "/tasks", helper.Token, map[string]any{"title": "Delegated", "ownerId": owner.ID})
	require.Equal(t, http.StatusCreated, status, out)
	taskID := out["task"].(map[string]any)["id"].(string)
	status, _ = api.do(http.MethodPut, "/tasks/"+taskID, helper.Token, map[string]any{"title": "Delegated v2", "importance": "high"})
	require.Equal(t, http.StatusOK, status)

	status, out = api.do(http.MethodGet, "/activity", owner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	logs := out["logs"].([]any)
	require.Len(t, logs, 3)
	latest := logs[0].(map[string]any)
	assert.Equal(t, "updated_task", latest["action"])
	assert.Equal(t, false, latest["isOwnAction"])
	assert.Equal(t, "loghelper", latest["actor"].(map[string]any)["username"])
	details := latest["details"].(map[string]any)
	assert.Equal(t, "Delegated", details["title"].(map[string]any)["old"])
	assert.Equal(t, "high", details["importance"].(map[string]any)["new"])
	assert.NotContains(t, details, "status")
	pg := out["pagination"].(map[string]any)
	assert.Equal(t, 3.0, pg["total"])
	assert.Equal(t, 1.0, pg["totalPages"])

	status, out = api.do(http.MethodGet, "/activity", helper.Token, nil)
	require.Equal(t, http.StatusOK, status)
	logs = out["logs"].([]any)
	require.Len(t, logs, 2)
	for _, l := range logs {
		entry := l.(map[string]any)
		assert.Equal(t, true, entry["isOwnAction"])
		assert.Equal(t, true, entry["isForOther"])
		assert.Equal(t, "logowner", entry["targetOwner"].(map[string]any)["username"])
	}

	status, out = api.do(http.MethodGet, "/activity?ownerId="+owner.ID+"&limit=2&page=2", helper.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["logs"], 1)
	assert.Equal(t, 2.0, out["pagination"].(map[string]any)["totalPages"])

	status, _ = api.do(http.MethodGet, "/activity?ownerId="+helper.ID, owner.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDelegationInvitations(t *testing.T) {
	api := newAPI(t)
	owner := api.register("inviter")
	invitee := api.register("invitee")

	status, out := api.do(http.MethodGet, "/delegations/search-users?query=i", owner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["users"])

	status, out = api.do(http.MethodGet, "/delegations/search-users?query=INVIT", owner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	users := out["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "invitee", users[0].(map[string]any)["username"])

	status, _ = api.do(http.MethodPost, "/delegations", owner.Token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = api.do(http.MethodPost, "/delegations", owner.Token, map[string]any{"identifier": "ghost"})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(http.MethodPost, "/delegations", owner.Token, map[string]any{"identifier": "inviter"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = api.do(http.MethodPost, "/delegations", owner.Token, map[string]any{"identifier": "INVITEE@example.com"})
	require.Equal(t, http.StatusCreated, status, out)
	id := out["delegation"].(map[string]any)["id"].(string)
	status, _ = api.do(http.MethodPost, "/delegations", owner.Token, map[string]any{"identifier": "invitee"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = api.do(http.MethodGet, "/delegations", invitee.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["pendingCount"])
	received := out["received"].([]any)
	require.Len(t, received, 1)
	assert.Equal(t, "inviter", received[0].(map[string]any)["owner"].(map[string]any)["username"])

	status, _ = api.do(http.MethodPost, "/delegations/"+id+"/leave", invitee.Token, nil)
	assert.Equal(t, http.StatusNotFound, status, "pending invitations cannot be left")

	status, _ = api.do(http.MethodPost, "/delegations/"+id+"/reject", invitee.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, out = api.do(http.MethodGet, "/delegations", owner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["given"])
}

func TestExport(t *testing.T) {
	api := newAPI(t)
	u := api.register("exporter")
	status, _ := api.do(http.MethodPost, "/tasks", u.Token, map[string]any{"title": "Fish & chips"})
	require.Equal(t, http.StatusCreated, status)

	req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/api/v1/tasks/export?format=xml", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+u.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment;")
	assert.Contains(t, string(body), "<title>Fish &amp; chips</title>")

	status, out := api.do(http.MethodGet, "/tasks/export", u.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["totalTasks"])
}

func TestCategoryUpdate(t *testing.T) {
	api := newAPI(t)
	owner := api.register("catowner")
	helper := api.register("cathelper")

	status, out := api.do(http.MethodPost, "/categories", owner.Token, map[string]any{"name": "Work", "icon": "briefcase"})
	require.Equal(t, http.StatusCreated, status, out)
	workID := out["category"].(map[string]any)["id"].(string)
	status, _ = api.do(http.MethodPost, "/categories", owner.Token, map[string]any{"name": "Home"})
	require.Equal(t, http.StatusCreated, status)

	api.delegate(owner, helper, map[string]any{"canCreateCategories": true, "canEditTasks": true})

	status, out = api.do(http.MethodPut, "/categories/"+workID, helper.Token, map[string]any{"name": "Taken over"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "only the owner can edit this category", out["error"])

	status, out = api.do(http.MethodPut, "/categories/"+workID, owner.Token, map[string]any{"name": "home"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "a category with this name already exists", out["error"])

	status, out = api.do(http.MethodPut, "/categories/"+workID, owner.Token, map[string]any{"name": "Office", "icon": nil})
	require.Equal(t, http.StatusOK, status, out)
	cat := out["category"].(map[string]any)
	assert.Equal(t, "Office", cat["name"])
	assert.Contains(t, cat, "icon")
	assert.Nil(t, cat["icon"])

	status, _ = api.do(http.MethodDelete, "/categories/"+workID, helper.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodDelete, "/categories/"+workID, owner.Token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, out = api.do(http.MethodGet, "/activity", owner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var actions []string
	for _, l := range out["logs"].([]any) {
		entry := l.(map[string]any)
		if entry["entityId"] == workID {
			actions = append(actions, entry["action"].(string))
		}
	}
	assert.Equal(t, []string{"deleted_category", "updated_category", "created_category"}, actions)
}

func TestProfileTheme(t *testing.T) {
	api := newAPI(t)
	u := api.register("themer")

	status, out := api.do(http.MethodPatch, "/auth/profile", u.Token, map[string]any{"themePreference": "blue"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "themePreference must be light or dark", out["error"])

	status, out = api.do(http.MethodPatch, "/auth/profile", u.Token, map[string]any{"themePreference": "dark", "firstName": "Theo"})
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "dark", out["user"].(map[string]any)["themePreference"])

	status, out = api.do(http.MethodGet, "/auth/profile", u.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "dark", out["user"].(map[string]any)["themePreference"])
	assert.Equal(t, "Theo", out["user"].(map[string]any)["firstName"])
}

func TestDeleteAccount(t *testing.T) {
	api := newAPI(t)
	owner := api.register("leaver")
	helper := api.register("stayer")
	api.delegate(owner, helper, map[string]any{"canCreateTasks": true})

	status, _ := api.do(http.MethodPost, "/tasks", owner.Token, map[string]any{"title": "Gone soon"})
	require.Equal(t, http.StatusCreated, status)

	status, out := api.do(http.MethodDelete, "/auth/account", owner.Token, nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, true, out["ok"])

	status, out = api.do(http.MethodGet, "/auth/me", owner.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "user not found", out["error"])

	status, _ = api.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "leaver", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, out = api.do(http.MethodGet, "/delegations", helper.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["received"])
}

func TestSearchUsersCap(t *testing.T) {
	api := newAPI(t)
	searcher := api.register("searcher")
	for i := range 12 {
		api.register("match" + strconv.Itoa(i))
	}

	status, out := api.do(http.MethodGet, "/delegations/search-users?query=match", searcher.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["users"], 10)

	status, out = api.do(http.MethodGet, "/delegations/search-users?query=match11", searcher.Token, nil)
	require.Equal(t, http.StatusOK, status)
	users := out["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "match11", users[0].(map[string]any)["username"])

	status, out = api.do(http.MethodGet, "/delegations/search-users?query=searcher", searcher.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["users"])
}

func TestActivityHugePage(t *testing.T) {
	api := newAPI(t)
	u := api.register("pager")
	status, _ := api.do(http.MethodPost, "/tasks", u.Token, map[string]any{"title": "Only one"})
	require.Equal(t, http.StatusCreated, status)

	status, out := api.do(http.MethodGet, "/activity?page=9223372036854775807", u.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["logs"])
	assert.Equal(t, 1.0, out["pagination"].(map[string]any)["total"])
}
