//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"family-ledger-go/internal/app"
	"family-ledger-go/internal/config"
	"family-ledger-go/internal/domain/aggregation"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/gateway/gatewaytest"
)

type testEnv struct {
	gateway *gatewaytest.Server
	server  *httptest.Server
	app     *app.App
}

// setupE2E runs the whole application against the in-memory gateway. The
// snapshot store is SQLite unless E2E_DB_DSN points at Postgres; events go
// to E2E_AMQP_URL when it is set.
func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	fake := gatewaytest.New()
	fake.SetMirrorMode(gatewaytest.MirrorLegacy)
	fake.AddUser("alice", "pw", ledger.RoleUser)
	fake.AddUser("root", "pw", ledger.RoleSuperadmin)

	cfg := config.Config{
		HTTPPort:    "0",
		Env:         "test",
		CORSOrigins: []string{"http://localhost:3000"},
		Gateway: config.GatewayConfig{
			BaseURL:     fake.URL,
			Timeout:     5 * time.Second,
			RefreshSkew: 30 * time.Second,
		},
		Dashboard: config.DashboardConfig{SnapshotsEnabled: true, RecentIncomes: 4},
		Store: config.StoreConfig{
			Driver:     config.StoreDriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
		},
		AMQP: config.AMQPConfig{
			URL:      os.Getenv("E2E_AMQP_URL"),
			Exchange: "ledger.lifecycle.e2e",
		},
	}
	if dsn := os.Getenv("E2E_DB_DSN"); dsn != "" {
		cfg.Store.Driver = config.StoreDriverPostgres
		cfg.DB = config.DBConfig{DSN: dsn}
	}

	application, err := app.NewWithConfig(cfg, nil)
	if err != nil {
		fake.Close()
		t.Fatalf("app init: %v", err)
	}
	server := httptest.NewServer(application.Handler())

	return &testEnv{gateway: fake, server: server, app: application}
}

func (e *testEnv) Close() {
	e.server.Close()
	e.gateway.Close()
	_ = e.app.Close()
}

func requestJSON(t *testing.T, method, url string, payload interface{}) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, respBody
}

func login(t *testing.T, env *testEnv, username string) {
	t.Helper()
	resp, body := requestJSON(t, http.MethodPost, env.server.URL+"/api/session/login", map[string]string{"username": username, "password": "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d %s", username, resp.StatusCode, body)
	}
}

type itemEnvelope struct {
	Item ledger.PersonalExpenseRequest `json:"item"`
}

func TestE2EHealthAndSession(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	resp, _ := requestJSON(t, http.MethodGet, env.server.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.app.Authenticated() {
		t.Fatalf("expected no session before login")
	}

	resp, _ = requestJSON(t, http.MethodGet, env.server.URL+"/api/session/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	login(t, env, "alice")
	if !env.app.Authenticated() {
		t.Fatalf("expected session after login")
	}
}

func TestE2EApprovalIsCountedOnce(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()
	base := env.server.URL + "/api"

	login(t, env, "root")
	resp, body := requestJSON(t, http.MethodPost, base+"/incomes", map[string]interface{}{"source_name": "Salary", "amount": 1000})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create income: expected 201, got %d %s", resp.StatusCode, body)
	}

	login(t, env, "alice")
	resp, body = requestJSON(t, http.MethodPost, base+"/personal-expenses", map[string]interface{}{
		"title": "Office chair", "amount_min": 100, "amount_avg": 150, "amount_max": 200,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", resp.StatusCode, body)
	}
	var created itemEnvelope
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, body = requestJSON(t, http.MethodPost, base+"/personal-expenses/"+created.Item.ID+"/submit", map[string]bool{"confirm": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d %s", resp.StatusCode, body)
	}

	login(t, env, "root")
	resp, body = requestJSON(t, http.MethodPost, base+"/personal-expenses/"+created.Item.ID+"/decide", map[string]interface{}{
		"decision": "approve", "approved_amount": " 180 ", "comment": "ok",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decide: expected 200, got %d %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, http.MethodGet, base+"/dashboard?from=2000-01-01&to=2100-12-31", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d %s", resp.StatusCode, body)
	}
	var dashboard aggregation.Dashboard
	if err := json.Unmarshal(body, &dashboard); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dashboard.Totals.PersonalApproved != 180 || dashboard.Totals.GlobalExpenses != 0 {
		t.Fatalf("expected approved amount once and no global expenses, got %+v", dashboard.Totals)
	}
	if dashboard.Totals.Remaining != 820 {
		t.Fatalf("expected remaining 820, got %v", dashboard.Totals.Remaining)
	}

	counted := 0
	for _, group := range dashboard.Groups {
		for _, item := range group.Items {
			if item.Title == "Office chair" || item.Title == "[Personal] Office chair" {
				counted++
			}
		}
	}
	if counted != 1 {
		t.Fatalf("expected the approved request in one group item, got %d", counted)
	}

	resp, body = requestJSON(t, http.MethodGet, base+"/dashboard/snapshots", nil)
	var snapshots struct {
		Items []aggregation.Snapshot `json:"items"`
	}
	if err := json.Unmarshal(body, &snapshots); err != nil || len(snapshots.Items) != 1 {
		t.Fatalf("expected one stored snapshot, got %d %s", resp.StatusCode, body)
	}
	if snapshots.Items[0].Totals.PersonalApproved != 180 {
		t.Fatalf("expected stored totals, got %+v", snapshots.Items[0].Totals)
	}
}
