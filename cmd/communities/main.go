// Communities Core - tenant account and administration service
//
// This is the main entry point for the Communities Core application.
// It serves the account workflows (registration, email confirmation,
// login, password reset) and the community administration API, with
// every request passing through bearer authentication and tenant-admin
// authorization.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/communities-core/migrations"

	"github.com/nerrad567/communities-core/internal/account"
	"github.com/nerrad567/communities-core/internal/api"
	"github.com/nerrad567/communities-core/internal/audit"
	"github.com/nerrad567/communities-core/internal/auth"
	"github.com/nerrad567/communities-core/internal/community"
	"github.com/nerrad567/communities-core/internal/infrastructure/config"
	"github.com/nerrad567/communities-core/internal/infrastructure/database"
	"github.com/nerrad567/communities-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/communities-core/internal/infrastructure/logging"
	"github.com/nerrad567/communities-core/internal/infrastructure/mail"
	"github.com/nerrad567/communities-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: each optional component adds a branch
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Communities Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Compile admin path rules before touching any external resource
	rules, err := compileAdminPaths(cfg.Security.AdminPaths)
	if err != nil {
		return fmt.Errorf("compiling admin paths: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Audit writer outlives ctx so entries queued during shutdown are drained
	// before the database closes.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditWriter := audit.NewWriter(auditRepo, "communities", audit.DefaultQueueSize, log.With("component", "audit"))
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		auditWriter.Run(auditCtx)
		close(auditDone)
	}()
	defer func() {
		stopAudit()
		<-auditDone
		log.Info("audit writer drained")
	}()

	// Optional collaborators stay nil interfaces when disabled.
	var (
		events    account.EventPublisher
		metrics   account.TokenMetrics
		gate      auth.GateRecorder
		mqttState api.ConnectionStatus
		influxUp  api.ConnectionStatus
		checks    = []healthChecker{db}
	)

	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		mqttClient.SetLogger(log.With("component", "mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		events, mqttState = mqttClient, mqttClient
		checks = append(checks, mqttClient)
	} else {
		log.Info("MQTT disabled, token events will not be published")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics, gate, influxUp = influxClient, influxClient, influxClient
		checks = append(checks, influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	var mailer account.Mailer
	if cfg.Mail.Enabled {
		mailer = mail.NewSMTPSender(cfg.Mail)
		log.Info("SMTP mail enabled", "host", cfg.Mail.Host, "port", cfg.Mail.Port)
	} else {
		mailer = mail.NewLogSender(log.With("component", "mail"))
		log.Info("SMTP mail disabled, token emails will only be logged")
	}

	codec := auth.NewTokenCodec()
	tokenStore := auth.NewSecurityTokenRepository(db.DB)
	tokenManager := auth.NewSecurityTokenManager(tokenStore, auth.TokenLifetimes{
		EmailConfirm:  cfg.Security.Tokens.EmailConfirmTTL,
		PasswordReset: cfg.Security.Tokens.PasswordResetTTL,
	})

	accounts := account.NewService(account.Deps{
		Users:   auth.NewUserRepository(db.DB),
		Tokens:  tokenManager,
		Lookup:  tokenStore,
		Mailer:  mailer,
		Events:  events,
		Metrics: metrics,
		Audit:   auditWriter,
		Bearer: account.BearerSettings{
			Codec:  codec,
			Secret: []byte(cfg.Security.Bearer.Secret),
			TTL:    cfg.Security.Bearer.AccessTokenTTLDuration(),
		},
		Logger: log.With("component", "account"),
	})

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Security:    cfg.Security,
		Logger:      log.With("component", "api"),
		Accounts:    accounts,
		Communities: community.NewSQLiteRepository(db.DB),
		Codec:       codec,
		AdminRules:  rules,
		Audit:       auditWriter,
		AuditLog:    auditRepo,
		DB:          db,
		MQTT:        mqttState,
		Influx:      influxUp,
		Gate:        gate,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"admin_paths", len(rules),
		"rejection_status", cfg.Security.RejectionStatus,
	)

	if hcErr := healthCheck(ctx, checks...); hcErr != nil {
		return fmt.Errorf("health check failed: %w", hcErr)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, audit writer, database.

	log.Info("Communities Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses COMMUNITIES_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("COMMUNITIES_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// compileAdminPaths turns configured rules into auth path rules.
func compileAdminPaths(paths []config.AdminPathRule) ([]auth.PathRule, error) {
	rules := make([]auth.PathRule, 0, len(paths))
	for _, p := range paths {
		rule, err := auth.CompilePathRule(p.Pattern, p.Methods)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// healthChecker is implemented by every infrastructure connection.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies all infrastructure connections are healthy and
// returns the first failure.
func healthCheck(ctx context.Context, checks ...healthChecker) error {
	for _, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}
