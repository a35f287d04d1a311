package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autoflow/app/actions"
	"autoflow/app/automation/engine"
	"autoflow/app/config"
	"autoflow/app/credential"
	"autoflow/app/db/dbtest"
	"autoflow/app/events"
	"autoflow/app/objects"
	"autoflow/app/workflow"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminKey = "s3cret"

type testAPI struct {
	handler http.Handler
	ctx     *contextx.Context
	auth    *credential.Authenticator
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	conn := dbtest.New(t)
	ctx := contextx.NewContext(conn)
	pub := &events.MemoryPublisher{}
	registry := actions.NewDefaultRegistry(actions.Deps{Publisher: pub})

	eng, err := engine.New(registry, pub, config.EngineConfig{Workers: 2, BatchSize: 10, ClaimTTL: 60, ActionTimeout: 5})
	require.NoError(t, err)
	auth, err := credential.New(config.AuthConfig{TokenPrefix: "afk", BcryptCost: bcrypt.MinCost, DefaultRateLimit: 100, RateWindowSeconds: 60})
	require.NoError(t, err)

	for _, id := range []string{"u1", "u2"} {
		u := objects.NewUser()
		u.ID = id
		u.Name = id
		u.Email = id + "@example.test"
		require.NoError(t, u.Save(ctx))
	}

	srv := NewServer(Options{
		DB:            conn,
		Engine:        eng,
		Authenticator: auth,
		Router:        workflow.NewRouter(registry, pub, time.Second),
		AdminKey:      adminKey,
	})
	return &testAPI{handler: srv.Handler(), ctx: ctx, auth: auth}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func admin(tenant string) map[string]string {
	h := map[string]string{headerAdminKey: adminKey}
	if tenant != "" {
		h[headerTenantID] = tenant
	}
	return h
}

func TestDispatch(t *testing.T) {
	asserter := assert.New(t)
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPost, "/api/v1/service-accounts", map[string]interface{}{
		"name":        "zapier",
		"permissions": []string{"create_invoice"},
	}, admin(""))
	require.Equal(t, http.StatusCreated, rec.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	asserter.NotEmpty(body["warning"])
	account := body["account"].(map[string]interface{})
	asserter.NotContains(account, "keyHash")

	bearer := map[string]string{"Authorization": "Bearer " + token, headerRequestID: "req-42"}

	rec, body = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{
		"action":     "create_invoice",
		"parameters": map[string]interface{}{"clientId": "c1", "amount": 100},
		"userId":     "u1",
	}, bearer)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Equal("req-42", rec.Header().Get(headerRequestID))
	asserter.Equal(true, body["success"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{
		"action":     "search",
		"parameters": map[string]interface{}{"query": "x"},
		"userId":     "u1",
	}, bearer)
	asserter.Equal(http.StatusForbidden, rec.Code)
	asserter.Equal("Forbidden", body["error"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{
		"action":     "create_invoice",
		"parameters": map[string]interface{}{"clientId": "c1"},
		"userId":     "u1",
	}, bearer)
	asserter.Equal(http.StatusBadRequest, rec.Code)
	asserter.Equal(objects.CodeValidation, body["error"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{
		"action": "create_invoice",
	}, bearer)
	asserter.Equal(http.StatusBadRequest, rec.Code)
	asserter.Equal(objects.CodeAmbiguousContext, body["error"])

	rec, _ = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{"action": "create_invoice"}, nil)
	asserter.Equal(http.StatusUnauthorized, rec.Code)
	asserter.NotEmpty(rec.Header().Get(headerRequestID))

	rec, _ = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{"action": "create_invoice"},
		map[string]string{headerAPIKey: "afk_nope"})
	asserter.Equal(http.StatusUnauthorized, rec.Code)
}

func dispatchLines(hook *logtest.Hook) []string {
	var lines []string
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "dispatch action=") {
			lines = append(lines, e.Message)
		}
	}
	return lines
}

func TestDispatch_EarlyRejectionsAreLogged(t *testing.T) {
	asserter := assert.New(t)
	api := newTestAPI(t)
	hook := &logtest.Hook{}
	log.AddHook(hook)

	rec, _ := api.do(t, http.MethodPost, "/api/v1/workflow/dispatch",
		map[string]interface{}{"action": "create_invoice", "userId": "u1"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	lines := dispatchLines(hook)
	if asserter.Len(lines, 1) {
		asserter.Contains(lines[0], "action=create_invoice")
		asserter.Contains(lines[0], "user=u1")
		asserter.Contains(lines[0], "outcome="+objects.CodeUnauthorized)
	}

	cred, err := api.auth.Issue(api.ctx, credential.IssueInput{Name: "bot", Permissions: []string{"*"}})
	require.NoError(t, err)
	hook.Reset()

	rec, _ = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch",
		map[string]interface{}{"action": "search", "userId": "ghost"},
		map[string]string{"Authorization": "Bearer " + cred.Token})
	require.Equal(t, http.StatusNotFound, rec.Code)
	lines = dispatchLines(hook)
	if asserter.Len(lines, 1) {
		asserter.Contains(lines[0], "action=search")
		asserter.Contains(lines[0], "user=ghost")
		asserter.Contains(lines[0], "serviceAccount="+cred.Account.ID)
		asserter.Contains(lines[0], "outcome="+objects.CodeNotFound)
	}
}

func TestDispatch_BoundTenantAndRotation(t *testing.T) {
	asserter := assert.New(t)
	api := newTestAPI(t)

	tenant := "u1"
	cred, err := api.auth.Issue(api.ctx, credential.IssueInput{Name: "bound", TenantID: &tenant, Permissions: []string{"*"}})
	require.NoError(t, err)
	key := map[string]string{headerAPIKey: cred.Token}

	rec, _ := api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{
		"action": "search", "parameters": map[string]interface{}{"query": "x"}, "userId": "u2",
	}, key)
	asserter.Equal(http.StatusForbidden, rec.Code)

	rec, body := api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{
		"action": "search", "parameters": map[string]interface{}{"query": "x"},
	}, key)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Equal(true, body["success"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/service-accounts/"+cred.Account.ID+"/rotate", nil, admin(""))
	require.Equal(t, http.StatusOK, rec.Code)
	asserter.Contains(body["warning"], "only once")
	newToken := body["token"].(string)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{"action": "search"}, key)
	asserter.Equal(http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/service-accounts/"+cred.Account.ID+"/active",
		map[string]interface{}{"active": false}, admin(""))
	asserter.Equal(http.StatusOK, rec.Code)
	rec, _ = api.do(t, http.MethodPost, "/api/v1/workflow/dispatch", map[string]interface{}{"action": "search"},
		map[string]string{headerAPIKey: newToken})
	asserter.Equal(http.StatusForbidden, rec.Code)
}

func TestAdminGuard(t *testing.T) {
	asserter := assert.New(t)
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodGet, "/api/v1/automations", nil, nil)
	asserter.Equal(http.StatusUnauthorized, rec.Code)
	rec, _ = api.do(t, http.MethodGet, "/api/v1/automations", nil, map[string]string{headerAdminKey: "wrong", headerTenantID: "u1"})
	asserter.Equal(http.StatusUnauthorized, rec.Code)
	rec, body := api.do(t, http.MethodGet, "/api/v1/automations", nil, admin(""))
	asserter.Equal(http.StatusBadRequest, rec.Code)
	asserter.Equal(objects.CodeValidation, body["error"])

	rec, _ = api.do(t, http.MethodGet, "/nowhere", nil, nil)
	asserter.Equal(http.StatusNotFound, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/healthz", nil, nil)
	asserter.Equal(http.StatusOK, rec.Code)
}

func TestAutomationLifecycle(t *testing.T) {
	asserter := assert.New(t)
	api := newTestAPI(t)
	h := admin("u1")

	rec, body := api.do(t, http.MethodPost, "/api/v1/automations", map[string]interface{}{
		"name":          "Weekly digest",
		"triggerType":   "schedule",
		"triggerConfig": map[string]interface{}{"schedule": "weekly", "weekday": "friday", "time": "16:00"},
		"actions": []map[string]interface{}{
			{"action": "send_notification", "parameters": map[string]interface{}{"to": "{{ .user.email }}", "subject": "Digest"}},
		},
	}, h)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := body["id"].(string)
	asserter.NotNil(body["nextRunAt"])
	asserter.Equal("abort", body["onFailure"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/automations", map[string]interface{}{
		"name":          "Broken",
		"triggerType":   "schedule",
		"triggerConfig": map[string]interface{}{"schedule": "daily"},
	}, h)
	asserter.Equal(http.StatusBadRequest, rec.Code)
	details := body["details"].(map[string]interface{})
	asserter.Contains(details, "triggerConfig.time")
	asserter.Contains(details, "actions")

	rec, _ = api.do(t, http.MethodGet, "/api/v1/automations/"+id, nil, admin("u2"))
	asserter.Equal(http.StatusNotFound, rec.Code)

	rec, body = api.do(t, http.MethodPost, "/api/v1/automations/"+id+"/toggle", map[string]interface{}{"enabled": false}, h)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Nil(body["nextRunAt"])
	asserter.Equal("disabled", body["state"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/automations/"+id+"/test", nil, h)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Equal("dryRun", body["mode"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/automations/"+id+"/run", nil, h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := body["run"].(map[string]interface{})
	asserter.Equal("succeeded", run["status"])

	rec, body = api.do(t, http.MethodGet, "/api/v1/automations/"+id+"/runs?page=1&limit=5", nil, h)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Equal(float64(1), body["total"])

	rec, body = api.do(t, http.MethodGet, "/api/v1/automations?enabled=false", nil, h)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Len(body["automations"], 1)

	rec, body = api.do(t, http.MethodDelete, "/api/v1/automations/"+id, nil, h)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Equal(true, body["deleted"])
}

func TestSeedSchedulerAndEvents(t *testing.T) {
	asserter := assert.New(t)
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPost, "/api/v1/defaults/seed", nil, admin("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	asserter.Equal(float64(4), body["created"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/scheduler/run", nil, admin(""))
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Equal(float64(0), body["processed"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/events", map[string]interface{}{"event": "invoice.paid"}, admin("u1"))
	asserter.Equal(http.StatusAccepted, rec.Code)
	asserter.Equal(float64(0), body["automations"])

	rec, _ = api.do(t, http.MethodPost, "/api/v1/events", map[string]interface{}{}, admin("u1"))
	asserter.Equal(http.StatusBadRequest, rec.Code)
}
