package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	memstorage "github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/kbooks/internal/assistant"
	"github.com/khanghh/kbooks/internal/audit"
	"github.com/khanghh/kbooks/internal/auth"
	"github.com/khanghh/kbooks/internal/books"
	"github.com/khanghh/kbooks/internal/common"
	"github.com/khanghh/kbooks/internal/config"
	"github.com/khanghh/kbooks/internal/handlers/api"
	"github.com/khanghh/kbooks/internal/memory"
	"github.com/khanghh/kbooks/internal/middlewares"
	"github.com/khanghh/kbooks/internal/render"
	"github.com/khanghh/kbooks/internal/store"
	"github.com/khanghh/kbooks/internal/tokens"
	"github.com/khanghh/kbooks/internal/zoho"
	"github.com/khanghh/kbooks/model"
	"github.com/khanghh/kbooks/params"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "kbooks - Zoho Books voice assistant backend"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig, autoMigrate bool) *gorm.DB {
	dialector := sqlite.Open(config.DefaultSQLiteDSN)
	if dbConfig.Dsn != "" {
		dialector = mysql.Open(dbConfig.Dsn)
	} else {
		slog.Warn("No mysql dsn configured, using sqlite", "file", config.DefaultSQLiteDSN)
		autoMigrate = true
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})
		if dbConfig.MaxIdleConns > 0 {
			resolver.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			resolver.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if err := db.Use(resolver); err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}

	if autoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			slog.Error("Database migration failed", "error", err)
			os.Exit(1)
		}
	}
	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func mustInitTokenSealer(masterKey string) tokens.Sealer {
	if masterKey == "" {
		slog.Warn("No master key configured, oauth tokens are stored unsealed")
		return nil
	}
	sealer, err := common.NewSealer(masterKey, "zoho-oauth-tokens")
	if err != nil {
		slog.Error("Failed to initialize token sealer", "error", err)
		os.Exit(1)
	}
	return sealer
}

func mustInitHtmlEngine(templateDir string) fiber.Views {
	htmlEngine, err := render.NewEngine(templateDir)
	if err != nil {
		slog.Error("Failed to initialize html engine", "error", err)
		os.Exit(1)
	}
	if err := render.Initialize(htmlEngine); err != nil {
		slog.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}
	return htmlEngine
}

// datastore holds the row store tables of the configured backend.
type datastore struct {
	tokens        store.Table[model.OAuthToken]
	conversations store.Table[model.Conversation]
	redisStorage  *redis.Storage
	checks        map[string]common.HealthChecker
}

func mustInitDatastore(cfg *config.Config) *datastore {
	ds := &datastore{checks: map[string]common.HealthChecker{}}
	switch cfg.Datastore.Backend {
	case config.BackendRedis:
		ds.redisStorage = mustInitRedisStorage(cfg.Redis)
		rdb := ds.redisStorage.Conn()
		ds.tokens = store.NewRedisTable[model.OAuthToken](rdb, params.TokenKeyPrefix)
		ds.conversations = store.NewRedisTable[model.Conversation](rdb, params.ConversationKeyPrefix)
		ds.checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	default:
		db := mustInitDatabase(cfg.MySQL, cfg.Datastore.AutoMigrate)
		audit.Initialize(audit.NewAuditEventRepository(db))
		ds.tokens = store.NewSQLTable[model.OAuthToken](db)
		ds.conversations = store.NewSQLTable[model.Conversation](db)
		ds.checks["database"] = ds.tokens.Ping
	}
	return ds
}

func newVoiceLimiter(redisStorage *redis.Storage) fiber.Handler {
	limiterConfig := limiter.Config{
		Max:        params.VoiceRateLimitMax,
		Expiration: params.VoiceRateLimitWindow,
		LimitReached: func(ctx *fiber.Ctx) error {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	}
	if redisStorage != nil {
		limiterConfig.Storage = redisStorage
	} else {
		limiterConfig.Storage = memstorage.New(memstorage.Config{GCInterval: params.VoiceRateLimitWindow})
	}
	return limiter.New(limiterConfig)
}

func setupAuthRoutes(router fiber.Router, authorizeService *auth.AuthorizeService, tokenService *tokens.TokenService) {
	authHandler := api.NewAuthHandler(authorizeService, tokenService)
	router.Get("/authorize", authHandler.GetAuthorize)
	router.Get("/callback", authHandler.GetCallback)
	router.Get("/status", authHandler.GetStatus)
	router.Get("/tokens", authHandler.GetTokens)
	router.Post("/revoke", authHandler.PostRevoke)
	router.Get("/health", authHandler.GetHealth)
}

func setupFinancialRoutes(router fiber.Router, connector *books.Connector) {
	financialHandler := api.NewFinancialHandler(connector)
	router.Get("/revenue", financialHandler.GetRevenue)
	router.Get("/invoices", financialHandler.GetInvoices)
	router.Get("/invoices/overdue", financialHandler.GetOverdueInvoices)
	router.Get("/expenses", financialHandler.GetExpenses)
	router.Get("/accounts", financialHandler.GetAccounts)
	router.Get("/cash", financialHandler.GetCashOnHand)
	router.Get("/cashflow", financialHandler.GetCashFlow)
	router.Get("/health", financialHandler.GetHealth)
}

func setupVoiceRoutes(router fiber.Router, voiceHandler *api.VoiceHandler, rateLimiter fiber.Handler) {
	router.Post("/voice", rateLimiter, voiceHandler.PostVoice)
	router.Get("/health", voiceHandler.GetHealth)
	router.Get("/version", voiceHandler.GetVersion)
}

func setupMemoryRoutes(router fiber.Router, memoryService *memory.MemoryService) {
	memoryHandler := api.NewMemoryHandler(memoryService)
	router.Post("/session", memoryHandler.PostSession)
	router.Get("/session/:sessionId", memoryHandler.GetSession)
	router.Delete("/session/:sessionId", memoryHandler.DeleteSession)
	router.Post("/message", memoryHandler.PostMessage)
	router.Patch("/context/:sessionId", memoryHandler.PatchContext)
	router.Get("/health", memoryHandler.GetHealth)
}

func newVoiceHandler(cfg *config.Config, httpClient *http.Client) *api.VoiceHandler {
	var recorder assistant.Recorder
	if cfg.Endpoints.Memory != "" {
		recorder = assistant.NewMemoryClient(cfg.Endpoints.Memory, httpClient)
	}
	voiceAssistant := assistant.NewAssistant(
		assistant.NewOpenAIProvider(cfg.AI, httpClient),
		assistant.NewFinancialClient(cfg.Endpoints.Financial, httpClient),
		recorder,
	)
	return api.NewVoiceHandler(voiceAssistant, cfg.Endpoints.Financial != "", cfg.AI.APIKey != "")
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return err
	}

	httpClient := &http.Client{Timeout: params.OutboundHTTPTimeout}
	ds := mustInitDatastore(cfg)

	bodyLimit := params.ServerBodyLimit
	if cfg.IsEnabled(config.ServiceVoice) {
		bodyLimit = params.VoiceBodyLimit
	}
	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     bodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		Views:         mustInitHtmlEngine(cfg.TemplateDir),
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowOrigins, ", "),
		AllowMethods: "GET, POST, OPTIONS, PUT, PATCH, DELETE",
		AllowHeaders: "Origin, X-Requested-With, Content-Type, Accept, Authorization",
	}))

	if cfg.IsEnabled(config.ServiceAuth) {
		zohoClient := zoho.NewClient(cfg.Zoho, httpClient)
		tokenRepo := tokens.NewTokenRepository(ds.tokens, mustInitTokenSealer(cfg.MasterKey))
		setupAuthRoutes(
			router.Group("/auth"),
			auth.NewAuthorizeService(zohoClient, cfg.Zoho.StateSecret),
			tokens.NewTokenService(zohoClient, tokenRepo, cfg.Zoho.BufferSeconds),
		)
	}
	if cfg.IsEnabled(config.ServiceFinancial) {
		tokenProvider := books.NewAuthServiceTokens(cfg.Endpoints.Auth, httpClient)
		setupFinancialRoutes(router.Group("/financial"), books.NewConnector(tokenProvider, httpClient, cfg.Zoho.BooksAPIBaseURL))
	}
	if cfg.IsEnabled(config.ServiceVoice) {
		setupVoiceRoutes(router.Group("/voice"), newVoiceHandler(cfg, httpClient), newVoiceLimiter(ds.redisStorage))
	}
	if cfg.IsEnabled(config.ServiceMemory) {
		convRepo := memory.NewConversationRepository(ds.conversations)
		setupMemoryRoutes(router.Group("/memory"), memory.NewMemoryService(convRepo))
	}
	slog.Info("Starting server", "addr", cfg.ListenAddr, "services", cfg.Services, "datastore", cfg.Datastore.Backend)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, ds.checks)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(cfg.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
