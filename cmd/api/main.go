package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/internal/config"
	"github.com/Cabralneto/site-tracker-pro/internal/notifications"
	"github.com/Cabralneto/site-tracker-pro/internal/permits"
	"github.com/Cabralneto/site-tracker-pro/internal/reference"
	"github.com/Cabralneto/site-tracker-pro/internal/reports"
	"github.com/Cabralneto/site-tracker-pro/internal/sla"
	"github.com/Cabralneto/site-tracker-pro/internal/users"
)

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	// Connect to database. sqlx owns the pool; gorm rides on the same
	// *sql.DB so both see one set of connections.
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal("Failed to initialize ORM", zap.Error(err))
	}

	if err := gormDB.AutoMigrate(
		&permits.Permit{},
		&permits.Event{},
		&sla.Config{},
		&reference.Frente{},
		&reference.Disciplina{},
		&reference.Impedimento{},
		&users.Profile{},
		&users.UserRole{},
		&users.Invite{},
	); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	issuer := auth.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL)

	// Invite email goes out through SES; without credentials the API still
	// runs, invites just log a delivery failure.
	var emailSender users.EmailSender
	if sesSender, err := users.NewSESSender(context.Background(), cfg.Email.Region, cfg.Email.Sender); err != nil {
		logger.Warn("SES unavailable, invite emails disabled", zap.Error(err))
	} else {
		emailSender = sesSender
	}

	hub := notifications.NewHub(logger)
	defer hub.Close()

	slaRepo := sla.NewGormRepository(gormDB)
	referenceRepo := reference.NewRepository(gormDB)
	usersRepo := users.NewGormRepository(gormDB)
	permitsRepo := permits.NewPostgresRepository(db)
	reportsRepo := reports.NewPostgresRepository(db)

	permitsService := permits.NewService(permitsRepo, slaRepo, hub, logger)
	usersService := users.NewService(usersRepo, emailSender, issuer, cfg.Email.InviteBaseURL, logger)
	reportsService := reports.NewService(reportsRepo, logger)

	permitsHandler := permits.NewHandler(permitsService, logger, cfg.Server.PublicBaseURL)
	slaHandler := sla.NewHandler(slaRepo, logger)
	referenceHandler := reference.NewHandler(referenceRepo, logger)
	usersHandler := users.NewHandler(usersService, logger)
	reportsHandler := reports.NewHandler(reportsService, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	public := router.Group("/api/v1")
	{
		usersHandler.RegisterPublicRoutes(public)
	}

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(issuer))
	{
		permitsHandler.RegisterRoutes(api)
		slaHandler.RegisterRoutes(api)
		referenceHandler.RegisterRoutes(api)
		usersHandler.RegisterRoutes(api)
		reportsHandler.RegisterRoutes(api)
	}

	ws := router.Group("/ws")
	ws.Use(auth.Middleware(issuer))
	ws.GET("", hub.ServeWS)

	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
