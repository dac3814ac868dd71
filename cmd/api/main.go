package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // attendance days need the configured zone even on bare images

	_ "attendance/api/swagger" // swagger docs
	"attendance/internal/calendar"
	"attendance/internal/config"
	"attendance/internal/database"
	"attendance/internal/handler"
	"attendance/internal/identity"
	"attendance/internal/jobs"
	"attendance/internal/logger"
	"attendance/internal/metrics"
	"attendance/internal/middleware"
	"attendance/internal/photostore"
	"attendance/internal/repository"
	"attendance/internal/service"
	"attendance/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Attendance API
// @version         1.0
// @description     Daily check-in and check-out with verification photos.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env", ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DB.DSN(), log)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	log.Info("connected to PostgreSQL", "host", cfg.DB.Host, "name", cfg.DB.Name)

	clock, err := calendar.LoadClock(cfg.Attendance.TimeZone)
	if err != nil {
		return err
	}

	auth, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return err
	}

	store, localRoot, err := newPhotoStore(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()

	// Set up WebSocket Hub
	hub := websocket.NewHub(log.With("component", "websocket"), cfg.Server.CORSOrigins)
	go hub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	photoRepo := repository.NewPhotoRepository(db)

	statsService, err := service.NewStatsService(attendanceRepo, clock)
	if err != nil {
		return err
	}
	defer statsService.Close()

	userService := service.NewUserService(txManager, userRepo, auditRepo, log.With("component", "users"), hub, statsService)
	attendanceService := service.NewAttendanceService(service.AttendanceDeps{
		TxManager:  txManager,
		Users:      userRepo,
		Attendance: attendanceRepo,
		Audit:      auditRepo,
		Photos:     photoRepo,
		Clock:      clock,
		Log:        log.With("component", "attendance"),
		Metrics:    m,
		Events:     hub,
		Stats:      statsService,
	})
	photoService := service.NewPhotoService(userRepo, photoRepo, store,
		service.PhotoConfig{MaxBytes: cfg.Photo.MaxBytes, OrphanTTL: cfg.Photo.OrphanTTL},
		log.With("component", "photos"), m)
	auditService := service.NewAuditService(auditRepo)

	scheduler := jobs.NewScheduler(log.With("component", "jobs"))
	if err := scheduler.AddPhotoSweep(cfg.Photo.SweepSchedule, photoService); err != nil {
		return err
	}
	scheduler.Start()

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), m.GinMiddleware(), middleware.RequestLogger(log.With("component", "http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Maintenance(cfg.Maintenance.Enabled))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(ctx, hub, c, auth, userService)
	})
	if localRoot != "" {
		serveURL, _ := url.Parse(cfg.Photo.ServeRoot)
		router.Static(strings.TrimRight(serveURL.Path, "/"), localRoot)
	}

	// API Routing
	api := router.Group("")
	handler.NewHealthHandler(db).RegisterRoutes(api)
	handler.NewUserHandler(userService, auth).RegisterRoutes(api)
	handler.NewAttendanceHandler(attendanceService, photoService, auth, cfg.Photo.MaxBytes).RegisterRoutes(api)

	admin := router.Group("/admin", middleware.RequireSession(auth), middleware.RequireAdmin(userService))
	handler.NewAdminHandler(userService, attendanceService).RegisterRoutes(admin)
	handler.NewStatisticsHandler(statsService, userService).RegisterRoutes(admin)
	handler.NewAuditHandler(auditService).RegisterRoutes(admin)

	if cfg.Webhook.SigningSecret != "" {
		webhookService, err := service.NewWebhookService(cfg.Webhook.SigningSecret, txManager, userRepo, auditRepo,
			log.With("component", "webhooks"), hub, statsService)
		if err != nil {
			return err
		}
		handler.NewWebhookHandler(webhookService).RegisterRoutes(api)
	} else {
		log.Warn("WEBHOOK_SIGNING_SECRET not set, identity webhooks are disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "timezone", cfg.Attendance.TimeZone, "maintenance", cfg.Maintenance.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// newAuthenticator prefers the OpenID provider when one is configured.
func newAuthenticator(ctx context.Context, cfg *config.Config) (identity.Authenticator, error) {
	if cfg.OIDC.Issuer != "" {
		a, err := identity.NewOIDCAuthenticator(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return identity.NewJWTAuthenticator(cfg.JWT.Secret), nil
}

// newPhotoStore also returns the directory to serve when photos live on local disk.
func newPhotoStore(cfg *config.Config) (photostore.Store, string, error) {
	if strings.EqualFold(cfg.Photo.Backend, config.PhotoBackendCloudinary) {
		s, err := photostore.NewCloudinaryStore(cfg.Cloudinary.URL, cfg.Cloudinary.Folder)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	}

	serveURL, err := url.Parse(cfg.Photo.ServeRoot)
	if err != nil {
		return nil, "", fmt.Errorf("parse photo serve root: %w", err)
	}
	s, err := photostore.NewLocalStore(cfg.Photo.Root, serveURL)
	if err != nil {
		return nil, "", err
	}
	return s, s.Root(), nil
}
