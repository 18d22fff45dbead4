package rest_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gsequeira/vigiaweb/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	env.seedClient(t, "Admin", "admin@sistema.local", "admin123", model.LevelAdmin)
	return env.loginToken(t, "admin@sistema.local", "admin123")
}

func TestAdminRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(env.router, http.MethodGet, "/api/admin/clientes", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRejectsRegularUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedClient(t, "Comum", "comum@exemplo.com", "senha123", "")
	token := env.loginToken(t, "comum@exemplo.com", "senha123")

	w := doJSON(env.router, http.MethodGet, "/api/admin/clientes", nil,
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClientCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)
	auth := []string{"Authorization", "Bearer " + token}

	// Create
	w := doJSON(env.router, http.MethodPost, "/api/admin/clientes", map[string]interface{}{
		"nome":    "Novo Cliente",
		"email":   "novo@exemplo.com",
		"senha":   "senha123",
		"empresa": "Acme",
	}, auth...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)["cliente"].(map[string]interface{})
	id := formatFloatID(created["id"])

	// Duplicate email
	w = doJSON(env.router, http.MethodPost, "/api/admin/clientes", map[string]interface{}{
		"nome": "Outro", "email": "NOVO@exemplo.com",
	}, auth...)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Get
	w = doJSON(env.router, http.MethodGet, "/api/admin/clientes/"+id, nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)

	// Update
	w = doJSON(env.router, http.MethodPut, "/api/admin/clientes/"+id, map[string]interface{}{
		"cidade": "São Paulo",
	}, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(env.router, http.MethodGet, "/api/admin/clientes/"+id, nil, auth...)
	updated := decodeBody(t, w)["cliente"].(map[string]interface{})
	assert.Equal(t, "São Paulo", updated["cidade"])
	assert.Equal(t, "Acme", updated["empresa"], "partial update keeps other fields")

	// Soft delete
	w = doJSON(env.router, http.MethodDelete, "/api/admin/clientes/"+id, nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(env.router, http.MethodGet, "/api/admin/clientes/"+id, nil, auth...)
	softDeleted := decodeBody(t, w)["cliente"].(map[string]interface{})
	assert.Equal(t, false, softDeleted["ativo"])

	// Hard delete
	w = doJSON(env.router, http.MethodDelete, "/api/admin/clientes/"+id+"?permanente=true", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(env.router, http.MethodGet, "/api/admin/clientes/"+id, nil, auth...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientList(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)
	env.seedClient(t, "Ana", "ana@acme.com", "", "")
	env.seedClient(t, "Bruno", "bruno@outra.com", "", "")

	w := doJSON(env.router, http.MethodGet, "/api/admin/clientes?busca=acme", nil,
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.EqualValues(t, 1, resp["total"])
}

func TestDeactivatedClientLosesAccess(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)
	other := env.seedClient(t, "Mod", "mod@exemplo.com", "senha123", model.LevelAdmin)
	otherToken := env.loginToken(t, "mod@exemplo.com", "senha123")

	// Deactivate the second admin; its session must die with it.
	w := doJSON(env.router, http.MethodDelete, "/api/admin/clientes/"+formatInt64(other.ID), nil,
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.router, http.MethodGet, "/api/admin/clientes", nil,
		"Authorization", "Bearer "+otherToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditLogEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	require.NoError(t, env.db.Create(&model.AuditLog{Action: "login", Level: model.LevelInfo}).Error)
	require.NoError(t, env.db.Create(&model.AuditLog{Action: "login_falhou", Level: model.LevelWarning}).Error)

	w := doJSON(env.router, http.MethodGet, "/api/admin/logs?nivel=warning", nil,
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	logs := resp["logs"].([]interface{})
	require.Len(t, logs, 1)
	entry := logs[0].(map[string]interface{})
	assert.Equal(t, "login_falhou", entry["acao"])
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	w := doJSON(env.router, http.MethodGet, "/api/admin/estatisticas", nil,
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	stats := resp["estatisticas"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["total_clientes"], "the seeded admin counts")
	assert.Contains(t, stats, "dispositivos_online")
	assert.Contains(t, stats, "sessoes_ativas")
}

func TestExportConnectionsCSV(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	require.NoError(t, env.db.Create(&model.Connection{
		SrcIP: "192.168.0.10", DstIP: "8.8.8.8", SrcPort: 51000, DstPort: 443,
		Protocol: "TCP", Status: "ESTABLISHED", Process: "chrome",
	}).Error)

	w := doJSON(env.router, http.MethodGet, "/api/admin/export/conexoes.csv", nil,
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2, "header plus one row")
	assert.Contains(t, lines[0], "ip_origem")
	assert.Contains(t, lines[1], "8.8.8.8")
	assert.Contains(t, lines[1], "chrome")
}
