package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/account"
	"github.com/gsequeira/vigiaweb/server/api/rest"
	"github.com/gsequeira/vigiaweb/server/audit"
	"github.com/gsequeira/vigiaweb/server/chat"
	"github.com/gsequeira/vigiaweb/server/config"
	"github.com/gsequeira/vigiaweb/server/device"
	"github.com/gsequeira/vigiaweb/server/ipident"
	mw "github.com/gsequeira/vigiaweb/server/middleware"
	"github.com/gsequeira/vigiaweb/server/model"
	"github.com/gsequeira/vigiaweb/server/netlog"
	"github.com/gsequeira/vigiaweb/server/session"
	"github.com/gsequeira/vigiaweb/server/stats"
	"github.com/gsequeira/vigiaweb/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAgentKey = "chave-teste"

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	accounts *account.Service
	sessions *session.Service
}

// newTestEnv wires the full handler stack against an in-memory DB,
// mirroring the route layout in main.go.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()

	auditSvc := audit.New(db, logger, 0)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	accounts := account.NewService(db, auditSvc, logger, bcrypt.MinCost)
	sessions := session.NewService(db, logger)
	idents := ipident.NewService(db, auditSvc, logger)
	devices := device.NewService(db, logger, 5*time.Minute)
	netlogSvc := netlog.NewService(db, logger)
	chatSvc := chat.NewService(db, c, ps, config.ChatConfig{}, logger)
	statsSvc := stats.NewService(db, c, logger, 5*time.Minute, 30*time.Minute)

	sessCfg := config.SessionConfig{TTL: time.Hour, CookieSameSite: "lax"}

	authH := rest.NewAuthHandler(accounts, sessions, auditSvc, sessCfg)
	termsH := rest.NewTermsHandler(idents, sessions, auditSvc, sessCfg)
	clientsH := rest.NewClientsHandler(accounts)
	devicesH := rest.NewDevicesHandler(devices)
	connsH := rest.NewConnectionsHandler(netlogSvc)
	chatH := rest.NewChatHandler(chatSvc, idents)
	logsH := rest.NewLogsHandler(auditSvc)
	statsH := rest.NewStatsHandler(statsSvc)
	monitorH := rest.NewMonitorHandler(idents, netlogSvc)

	r := gin.New()
	api := r.Group("/api")
	{
		api.POST("/aceitar-termos", termsH.AcceptTerms)
		api.GET("/usuario-info", termsH.UserInfo)
		api.GET("/meus-dados", termsH.MyData)

		api.POST("/auth/login", authH.Login)
		api.POST("/auth/logout", authH.Logout)
		api.GET("/auth/validar", authH.Validate)

		chatG := api.Group("/chat")
		chatG.GET("/presenca", chatH.Presence)
		chatG.Use(mw.SessionAuth(sessions, accounts))
		chatG.POST("/mensagens", chatH.Post)
		chatG.GET("/mensagens", chatH.History)

		agentG := api.Group("/agent")
		agentG.Use(mw.AgentKey(testAgentKey))
		agentG.POST("/dispositivos", devicesH.Register)
		agentG.POST("/dispositivos/:id/heartbeat", devicesH.Heartbeat)
		agentG.POST("/conexoes", connsH.Record)

		adminG := api.Group("/admin")
		adminG.Use(mw.SessionAuth(sessions, accounts), mw.RequireLevel(model.LevelAdmin))
		adminG.GET("/clientes", clientsH.List)
		adminG.POST("/clientes", clientsH.Create)
		adminG.GET("/clientes/:id", clientsH.Get)
		adminG.PUT("/clientes/:id", clientsH.Update)
		adminG.DELETE("/clientes/:id", clientsH.Delete)
		adminG.GET("/dispositivos", devicesH.List)
		adminG.GET("/conexoes", connsH.List)
		adminG.DELETE("/chat/mensagens/:id", chatH.Delete)
		adminG.GET("/logs", logsH.List)
		adminG.GET("/estatisticas", statsH.Summary)
		adminG.GET("/visitantes", monitorH.Visitors)
		adminG.GET("/export/conexoes.csv", monitorH.ExportConnections)
	}

	return &testEnv{router: r, db: db, accounts: accounts, sessions: sessions}
}

// seedClient creates an account directly through the service.
func (e *testEnv) seedClient(t *testing.T, name, email, password, level string) *model.Client {
	t.Helper()
	client, err := e.accounts.Create(context.Background(), account.CreateInput{
		Name:        name,
		Email:       email,
		Password:    password,
		AccessLevel: level,
	}, "127.0.0.1")
	require.NoError(t, err)
	return client
}

// loginToken logs in over HTTP and returns the issued token.
func (e *testEnv) loginToken(t *testing.T, email, password string) string {
	t.Helper()
	w := doJSON(e.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email,
		"senha": password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"].(string)
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func formatInt64(id int64) string {
	return strconv.FormatInt(id, 10)
}

// formatFloatID renders an ID decoded from JSON (always float64) as a
// path segment.
func formatFloatID(v interface{}) string {
	return strconv.FormatInt(int64(v.(float64)), 10)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
