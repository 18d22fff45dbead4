package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/account"
	apirest "github.com/gsequeira/vigiaweb/server/api/rest"
	"github.com/gsequeira/vigiaweb/server/api/sse"
	"github.com/gsequeira/vigiaweb/server/audit"
	"github.com/gsequeira/vigiaweb/server/cache"
	"github.com/gsequeira/vigiaweb/server/chat"
	"github.com/gsequeira/vigiaweb/server/config"
	dbadapter "github.com/gsequeira/vigiaweb/server/db"
	"github.com/gsequeira/vigiaweb/server/device"
	"github.com/gsequeira/vigiaweb/server/ipident"
	mw "github.com/gsequeira/vigiaweb/server/middleware"
	"github.com/gsequeira/vigiaweb/server/model"
	"github.com/gsequeira/vigiaweb/server/netlog"
	"github.com/gsequeira/vigiaweb/server/scheduler"
	"github.com/gsequeira/vigiaweb/server/session"
	"github.com/gsequeira/vigiaweb/server/stats"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if agent endpoints will be disabled.
	if cfg.Security.AgentAPIKey == "" {
		logger.Warn("security.agent_api_key is not set; agent endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger, cfg.Monitor.AuditMaxRows)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheCfg := cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheCfg)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheCfg)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Services ----
	accountSvc := account.NewService(db, auditSvc, logger, cfg.Security.BcryptCost)
	sessionSvc := session.NewService(db, logger)
	identSvc := ipident.NewService(db, auditSvc, logger)
	deviceSvc := device.NewService(db, logger, cfg.Monitor.OnlineWindow)
	netlogSvc := netlog.NewService(db, logger)
	chatSvc := chat.NewService(db, c, pubsub, cfg.Chat, logger)
	statsSvc := stats.NewService(db, c, logger, cfg.Monitor.OnlineWindow, cfg.Monitor.ActiveWindow)

	if err := seedAdmin(accountSvc, cfg.Admin, logger); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("session_sweep", 10*time.Minute, func() {
		n, err := sessionSvc.SweepExpired(context.Background())
		if err != nil {
			logger.Warn("session sweep failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("expired sessions swept", zap.Int64("count", n))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- Handlers ----
	authH := apirest.NewAuthHandler(accountSvc, sessionSvc, auditSvc, cfg.Session)
	termsH := apirest.NewTermsHandler(identSvc, sessionSvc, auditSvc, cfg.Session)
	clientsH := apirest.NewClientsHandler(accountSvc)
	devicesH := apirest.NewDevicesHandler(deviceSvc)
	connsH := apirest.NewConnectionsHandler(netlogSvc)
	chatH := apirest.NewChatHandler(chatSvc, identSvc)
	logsH := apirest.NewLogsHandler(auditSvc)
	statsH := apirest.NewStatsHandler(statsSvc)
	monitorH := apirest.NewMonitorHandler(identSvc, netlogSvc)
	sseH := sse.NewHandler(pubsub, chatSvc, sessionSvc, accountSvc, identSvc, logger)

	api := r.Group("/api")
	{
		// Anonymous visitor flow.
		api.POST("/aceitar-termos", termsH.AcceptTerms)
		api.GET("/usuario-info", termsH.UserInfo)
		api.GET("/meus-dados", termsH.MyData)

		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", authH.Logout)
		authG.GET("/validar", authH.Validate)

		chatG := api.Group("/chat")
		chatG.GET("/stream", sseH.Stream)
		chatG.GET("/presenca", chatH.Presence)
		chatG.Use(mw.SessionAuth(sessionSvc, accountSvc))
		chatG.POST("/mensagens", chatH.Post)
		chatG.GET("/mensagens", chatH.History)

		agentG := api.Group("/agent")
		agentG.Use(mw.AgentKey(cfg.Security.AgentAPIKey))
		agentG.POST("/dispositivos", devicesH.Register)
		agentG.POST("/dispositivos/:id/heartbeat", devicesH.Heartbeat)
		agentG.POST("/conexoes", connsH.Record)

		adminG := api.Group("/admin")
		adminG.Use(mw.SessionAuth(sessionSvc, accountSvc), mw.RequireLevel(model.LevelAdmin))
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

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// seedAdmin makes sure the bootstrap admin account exists. An already
// existing account is left untouched, password included.
func seedAdmin(accounts *account.Service, cfg config.AdminConfig, logger *zap.Logger) error {
	if cfg.Email == "" {
		return nil
	}
	ctx := context.Background()
	_, err := accounts.GetByEmail(ctx, cfg.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return err
	}
	_, err = accounts.Create(ctx, account.CreateInput{
		Name:        cfg.Name,
		Email:       cfg.Email,
		Password:    cfg.Password,
		AccessLevel: model.LevelAdmin,
	}, "127.0.0.1")
	if err != nil {
		return err
	}
	logger.Info("bootstrap admin created", zap.String("email", cfg.Email))
	return nil
}
