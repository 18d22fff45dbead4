package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRequiresKey(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(env.router, http.MethodPost, "/api/agent/dispositivos", map[string]interface{}{
		"hostname": "pc-sem-chave",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(env.router, http.MethodPost, "/api/agent/dispositivos", map[string]interface{}{
		"hostname": "pc-chave-errada",
	}, "X-API-Key", "errada")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterDeviceAndHeartbeat(t *testing.T) {
	env := newTestEnv(t)
	key := []string{"X-API-Key", testAgentKey}

	w := doJSON(env.router, http.MethodPost, "/api/agent/dispositivos", map[string]interface{}{
		"hostname":            "pc-escritorio",
		"mac_address":         "AA:BB:CC:DD:EE:10",
		"sistema_operacional": "Windows",
		"processador":         "Ryzen 5",
	}, key...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["novo"])
	dev := resp["dispositivo"].(map[string]interface{})
	id := formatFloatID(dev["id"])

	// Re-registering the same MAC refreshes instead of duplicating.
	w = doJSON(env.router, http.MethodPost, "/api/agent/dispositivos", map[string]interface{}{
		"hostname":    "pc-escritorio",
		"mac_address": "AA:BB:CC:DD:EE:10",
	}, key...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["novo"])

	w = doJSON(env.router, http.MethodPost, "/api/agent/dispositivos/"+id+"/heartbeat", nil, key...)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.router, http.MethodPost, "/api/agent/dispositivos/99999/heartbeat", nil, key...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterDeviceNeedsIdentity(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(env.router, http.MethodPost, "/api/agent/dispositivos", map[string]interface{}{
		"sistema_operacional": "Linux",
	}, "X-API-Key", testAgentKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordConnections(t *testing.T) {
	env := newTestEnv(t)
	key := []string{"X-API-Key", testAgentKey}

	w := doJSON(env.router, http.MethodPost, "/api/agent/conexoes", map[string]interface{}{
		"dispositivo_id": 1,
		"conexoes": []map[string]interface{}{
			{"ip_origem": "192.168.0.10", "ip_destino": "8.8.8.8", "porta_destino": 443},
			{"ip_origem": "192.168.0.10", "ip_destino": "1.1.1.1", "porta_destino": 53, "protocolo": "UDP"},
		},
	}, key...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.EqualValues(t, 2, resp["registradas"])
}
