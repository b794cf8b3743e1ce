// Package app wires the auth core together: configuration, signing keys,
// store, transports, and services, with lifecycle owned here rather than by
// package-level singletons.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/innkeep/authcore/internal/auth/audit"
	"github.com/innkeep/authcore/internal/auth/notify"
	"github.com/innkeep/authcore/internal/auth/service"
	"github.com/innkeep/authcore/internal/auth/store"
	"github.com/innkeep/authcore/internal/auth/store/drivers/sqlite"
	"github.com/innkeep/authcore/pkg/cryptox"
	"github.com/innkeep/authcore/pkg/jwtx"
	"github.com/innkeep/authcore/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application holds every constructed dependency of the auth core. Transports
// (HTTP, gRPC, whatever embeds this core) take the exported services from
// here.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.Signer

	Login        *service.LoginService
	Tokens       *service.TokenService
	OTP          *service.OTPService
	Reset        *service.ResetService
	TwoFactor    *service.TwoFactorService
	Identities   *service.IdentityService
	housekeeping *service.HousekeepingService
}

// New constructs an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := initSigningKey(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.signer = signer

	app.initServices()

	return app, nil
}

// Run starts background workers and blocks until a shutdown signal arrives.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("auth core started", "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops background workers and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth core...")

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth core stopped")
	return nil
}

// Logger exposes the application logger for embedding transports.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Store exposes the durable store for embedding transports.
func (app *Application) Store() store.Store { return app.db }

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied")
	return nil
}

func (app *Application) initServices() {
	recorder := &audit.Recorder{
		Sink:   &audit.LogSink{Logger: app.logger},
		Logger: app.logger,
	}

	dispatcher := &notify.Dispatcher{
		Mailer: app.buildMailer(),
		SMS:    &notify.LogSMSSender{Logger: app.logger},
	}

	verifier := jwtx.NewVerifier(app.signer, app.cfg.Issuer)

	app.Tokens = &service.TokenService{
		Store:            app.db,
		Signer:           app.signer,
		Verifier:         verifier,
		Issuer:           app.cfg.Issuer,
		Audit:            recorder,
		AccessTTL:        app.cfg.AccessTTL,
		RefreshTTL:       app.cfg.RefreshTTL,
		TrustedDeviceTTL: app.cfg.TrustedDeviceTTL,
		MaxSessions:      app.cfg.MaxSessions,
	}

	app.OTP = &service.OTPService{
		Store:      app.db,
		Dispatcher: dispatcher,
		Limiter:    service.NewIssueLimiter(app.cfg.OTPRateCount, app.cfg.OTPRateWindow, app.cfg.OTPRateBurst),
		CodeTTL:    app.cfg.CodeTTL,
	}

	app.Login = &service.LoginService{
		Store:              app.db,
		Tokens:             app.Tokens,
		OTP:                app.OTP,
		Audit:              recorder,
		RevalidationWindow: app.cfg.RevalidationWindow,
	}

	app.Reset = &service.ResetService{
		Store:         app.db,
		OTP:           app.OTP,
		Dispatcher:    dispatcher,
		Audit:         recorder,
		ResetLinkBase: app.cfg.ResetLinkBase,
		GrantTTL:      app.cfg.ResetGrantTTL,
	}

	app.TwoFactor = &service.TwoFactorService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
		Audit:  recorder,
	}

	app.Identities = &service.IdentityService{
		Store: app.db,
		Audit: recorder,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// buildMailer selects SMTP when configured and falls back to the log
// transport for local development.
func (app *Application) buildMailer() notify.Mailer {
	if app.cfg.SMTPHost == "" {
		app.logger.Warn("no SMTP host configured, using log mail transport")
		return &notify.LogMailer{Logger: app.logger}
	}
	return notify.NewSMTPMailer(
		app.cfg.SMTPHost,
		app.cfg.SMTPPort,
		app.cfg.SMTPFrom,
		app.cfg.SMTPUser,
		app.cfg.SMTPPass,
	)
}
