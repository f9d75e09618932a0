package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	_ "taskflow/docs"
	"taskflow/internal/config"
	"taskflow/internal/handlers"
	"taskflow/internal/logging"
	"taskflow/internal/middleware"
	"taskflow/internal/models"
	"taskflow/internal/pdf"
	"taskflow/internal/realtime"
	"taskflow/internal/repositories"
	"taskflow/internal/repositories/memory"
	"taskflow/internal/routes"
	"taskflow/internal/services"
	"taskflow/internal/storage"
)

const fontPath = "assets/fonts/DejaVuSans.ttf"

// App owns every long-lived component of the server.
type App struct {
	cfg        *config.Config
	db         *sql.DB
	Store      repositories.Store
	Router     *gin.Engine
	Hub        *realtime.Hub
	Dispatcher *services.OutboxDispatcher
	Projects   services.ProjectService
}

// OpenDB connects to Postgres and verifies the connection.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repositories.Store, *sql.DB, error) {
	switch cfg.Database.Driver {
	case "memory":
		logrus.Warn("[app] using the in-memory store; data is lost on exit")
		return memory.NewStore(), nil, nil
	case "postgres":
		db, err := OpenDB(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewStore(db), db, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func openFiles(ctx context.Context, cfg *config.Config) (storage.Store, string, error) {
	switch cfg.Storage.Driver {
	case "minio":
		s, err := storage.NewMinioStore(ctx, cfg.Storage.Minio)
		return s, "", err
	case "local":
		s, err := storage.NewLocalStore(cfg.Files.RootDir, cfg.Files.PublicURL)
		return s, cfg.Files.RootDir, err
	}
	return nil, "", fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// senders also returns the bot client when Telegram is enabled, nil otherwise.
func senders(cfg *config.Config) (map[models.OutboxKind]services.Sender, *services.TelegramService, error) {
	out := map[models.OutboxKind]services.Sender{
		models.OutboxEmail: services.EmailSender(services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
		)),
	}
	if !cfg.Telegram.Enable {
		return out, nil, nil
	}
	tg, err := services.NewTelegramService(cfg.Telegram.BotToken)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: %w", err)
	}
	out[models.OutboxTelegram] = tg
	return out, tg, nil
}

// New wires the store, services and HTTP routes described by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	files, filesDir, err := openFiles(ctx, cfg)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	snd, tg, err := senders(cfg)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	hub := realtime.NewHub()
	dispatcher := services.NewOutboxDispatcher(store, services.OutboxConfig{
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		BaseBackoff: cfg.Outbox.BaseBackoff,
		MaxBackoff:  cfg.Outbox.MaxBackoff,
	}, snd)
	notifier := services.NewNotifier(hub, cfg.Telegram.Enable, dispatcher)

	// === Services ===
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.PMTokenTTL, cfg.Auth.EmployeeTokenTTL)
	identity := services.NewIdentityService(store, authService, files, dispatcher, cfg.Email.LoginURL)
	reset := services.NewPasswordResetService(store, authService, dispatcher, cfg.Auth.OTPTTL)
	projects := services.NewProjectService(store, pdf.NewReportGenerator(fontPath))
	tasks := services.NewTaskService(store, files, notifier)
	bugs := services.NewBugService(store, files, notifier)
	suggestions := services.NewSuggestionService(store, notifier)
	notifications := services.NewNotificationService(store, notifier)
	links := services.NewTelegramLinkService(store, cfg.Telegram.LinkTTL)

	var integrations *handlers.IntegrationsHandler
	if tg != nil {
		integrations = handlers.NewIntegrationsHandler(tg, links, tasks, cfg.Telegram.WebhookSecret)
	}

	// === Gin ===
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(logging.AccessLog())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, routes.Handlers{
		Auth:          handlers.NewAuthHandler(identity, reset),
		Employees:     handlers.NewEmployeeHandler(identity),
		Projects:      handlers.NewProjectHandler(projects),
		Reports:       handlers.NewReportHandler(projects),
		Tasks:         handlers.NewTaskHandler(tasks),
		Bugs:          handlers.NewBugHandler(bugs),
		Suggestions:   handlers.NewSuggestionHandler(suggestions),
		Notifications: handlers.NewNotificationHandler(notifications, hub),
		Integrations:  integrations,
	}, routes.Options{JWTSecret: []byte(cfg.Auth.JWTSecret), FilesDir: filesDir})

	return &App{
		cfg:        cfg,
		db:         db,
		Store:      store,
		Router:     router,
		Hub:        hub,
		Dispatcher: dispatcher,
		Projects:   projects,
	}, nil
}

func closeDB(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logrus.Errorf("[app][db][close][err] %v", err)
	}
}

// scheduler ticks the outbox and sweeps in-progress projects.
func (a *App) scheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()
	if err := c.AddFunc(fmt.Sprintf("@every %s", a.cfg.Outbox.Interval), a.Dispatcher.Trigger); err != nil {
		return nil, fmt.Errorf("outbox schedule: %w", err)
	}
	err := c.AddFunc(a.cfg.ReconcileSchedule, func() {
		n, err := a.Projects.ReconcileInProgress(ctx)
		if err != nil {
			logrus.Errorf("[cron][reconcile][err] %v", err)
			return
		}
		if n > 0 {
			logrus.Infof("[cron][reconcile] completed %d project(s)", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", a.cfg.ReconcileSchedule, err)
	}
	return c, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	defer closeDB(a.db)

	jobs, err := a.scheduler(ctx)
	if err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	go a.Dispatcher.Run(ctx)
	// Deliver whatever a previous process left behind.
	a.Dispatcher.Trigger()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("[app] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("[app] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Serve loads the configuration, sets up logging and runs the server.
func Serve(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if rotator := logging.Setup(cfg.Logging); rotator != nil {
		defer closeQuietly(rotator)
	}
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// Migrate applies the embedded schema to the configured database.
func Migrate(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if rotator := logging.Setup(cfg.Logging); rotator != nil {
		defer closeQuietly(rotator)
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrate needs the postgres driver, config has %q", cfg.Database.Driver)
	}
	db, err := OpenDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(db)
	if err := repositories.Migrate(ctx, db); err != nil {
		return err
	}
	logrus.Info("[migrate] schema is up to date")
	return nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logrus.Errorf("[app][close][err] %v", err)
	}
}
