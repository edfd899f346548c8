// Package main is the entry point for the tenantkit API server.
//
// It loads configuration, opens the Postgres pool (optionally applying
// migrations first), builds the domain services on top of the repositories
// and serves the HTTP API until SIGINT or SIGTERM, then drains in-flight
// requests.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"tenantkit/internal/api/handlers"
	"tenantkit/internal/audit"
	"tenantkit/internal/auth"
	"tenantkit/internal/billing"
	"tenantkit/internal/config"
	"tenantkit/internal/core"
	"tenantkit/internal/db"
	"tenantkit/internal/db/migrate"
	"tenantkit/internal/external"
	"tenantkit/internal/features"
	"tenantkit/internal/i18n"
	"tenantkit/internal/invitation"
	notifycore "tenantkit/internal/notifications/core"
	"tenantkit/internal/notifications/email"
	"tenantkit/internal/organization"
	"tenantkit/internal/ownership"
	"tenantkit/internal/tenant"
	"tenantkit/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	appEnv := os.Getenv("APP_ENV")
	cfg, err := config.LoadConfig(config.NewSecretProvider(appEnv, os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tenantkit API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.MigrateOnStart {
		if err := migrate.Run(cfg.Database.URL.Unmask(), migrate.Up); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	emails, err := newEmailDispatcher(cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("building email dispatcher: %w", err)
	}

	srv, err := buildServer(cfg, logger, pool, emails, newBillingService(cfg.Billing, logger))
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// dbConn is satisfied by *pgxpool.Pool.
type dbConn interface {
	db.DBTX
	db.TxBeginner
	core.Pinger
}

// buildServer wires repositories, services and handlers into a routed
// server. It performs no I/O.
func buildServer(cfg *config.Config, logger *slog.Logger, conn dbConn, emails notifycore.Dispatcher, billingSvc external.BillingService) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	repos := db.NewRepositories(conn)
	txm := db.NewTxManager(conn)
	clock := types.RealClock{}
	flags := features.NewResolver(cfg.Feature.Defaults, nil)
	sink := audit.NewSink(repos.Audit, flags, clock, logger)
	links := tenant.LinkBuilder{
		Scheme:     cfg.Tenant.Scheme,
		RootDomain: cfg.Tenant.RootDomain,
		Subdomains: cfg.Tenant.Subdomains,
	}

	authCfg := auth.Config{
		SessionTTL:      cfg.Auth.SessionTTL,
		MaxFailedLogins: cfg.Auth.MaxFailedLogins,
		LockoutDuration: cfg.Auth.LockoutDuration,
	}
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:    repos.Users,
		Sessions: repos.Sessions,
		Tx:       authTx{txm},
		Hasher:   auth.BcryptHasher{Cost: cfg.Auth.BcryptCost},
		NewID:    db.NewID,
		Clock:    clock,
		Logger:   logger,
	}, authCfg)

	orgSvc := organization.NewService(organization.ServiceDeps{
		Orgs:        repos.Organizations,
		Memberships: repos.Memberships,
		Tx:          organizationTx{txm},
		Billing:     billingSvc,
		Flags:       flags,
		Plans:       billing.NewStaticPlanRegistry(),
		Audit:       sink,
		NewID:       db.NewID,
		Clock:       clock,
		Logger:      logger,
	})

	invitationSvc := invitation.NewService(invitation.ServiceDeps{
		Invitations: repos.Invitations,
		Memberships: repos.Memberships,
		Orgs:        repos.Organizations,
		Users:       repos.Users,
		Tx:          invitationTx{txm},
		Emails:      emails,
		Links:       links,
		Audit:       sink,
		NewID:       db.NewID,
		Clock:       clock,
		Logger:      logger,
		TTL:         cfg.Auth.InvitationTTL,
	})

	ownershipSvc := ownership.NewService(ownership.ServiceDeps{
		Memberships: repos.Memberships,
		Tx:          ownershipTx{txm},
		Orgs:        repos.Organizations,
		Users:       repos.Users,
		Emails:      emails,
		Links:       links,
		Audit:       sink,
		Logger:      logger,
	})

	webhookSvc := billing.NewWebhookService(external.StripeVerifier{}, repos.Organizations, cfg.Billing.StripeWebhookSecret, logger)

	v := srv.Validator
	authH := handlers.NewAuthHandler(authSvc, orgSvc, sink, v, cookieConfig(cfg.Auth), logger)
	orgH := handlers.NewOrganizationHandler(orgSvc, v)
	memberH := handlers.NewMemberHandler(orgSvc, v)
	invitationH := handlers.NewInvitationHandler(invitationSvc, v)
	ownershipH := handlers.NewOwnershipHandler(ownershipSvc, v)
	auditH := handlers.NewAuditLogHandler(audit.NewReader(repos.Audit))

	srv.Authenticator = authSvc
	srv.Orgs = repos.Organizations
	srv.Memberships = repos.Memberships
	srv.Flags = flags
	srv.HealthProbes = []core.HealthProbe{core.PingProbe{ProbeName: "database", Target: conn}}

	srv.PublicAPI = []core.RouteRegistrar{
		authH.RegisterPublicRoutes,
		handlers.NewFeatureHandler(flags).RegisterRoutes,
		handlers.NewStripeWebhookHandler(webhookSvc, logger).RegisterRoutes,
	}
	srv.SessionAPI = []core.RouteRegistrar{
		authH.RegisterSessionRoutes,
		orgH.RegisterSessionRoutes,
		invitationH.RegisterSessionRoutes,
	}
	srv.TenantRoutes = []core.RouteRegistrar{
		orgH.RegisterTenantRoutes,
		memberH.RegisterTenantRoutes,
		invitationH.RegisterTenantRoutes,
		ownershipH.RegisterTenantRoutes,
	}
	srv.GatedTenantRoutes = map[string][]core.RouteRegistrar{
		features.AuditLog: {auditH.RegisterTenantRoutes},
	}

	srv.MountRoutes()
	return srv, nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// newEmailDispatcher either enqueues messages for the email worker or renders
// and sends them inline.
func newEmailDispatcher(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (notifycore.Dispatcher, error) {
	if cfg.Email.Dispatch == "queue" {
		return notifycore.NewQueueDispatcher(sqs.NewFromConfig(awsCfg), cfg.AWS.EmailQueueURL, logger), nil
	}

	provider, err := email.NewProvider(email.ProviderConfig{
		Kind:           cfg.Email.Provider,
		SendGridAPIKey: cfg.Email.SendGridAPIKey,
		SESConfigSet:   cfg.Email.SESConfigSet,
	}, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	tr, err := i18n.New()
	if err != nil {
		return nil, err
	}
	renderer, err := email.NewRenderer(tr, types.SenderIdentity{
		Name:    cfg.Email.FromName,
		Address: cfg.Email.FromAddress,
	})
	if err != nil {
		return nil, err
	}

	var metrics notifycore.Metrics = notifycore.NoopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = notifycore.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
	}
	sender := email.NewSender(renderer, provider, metrics, types.RealClock{}, logger)
	return email.NewDirectDispatcher(sender), nil
}

// newBillingService talks to Stripe when a secret key is configured and
// otherwise logs and skips billing calls.
func newBillingService(cfg config.BillingConfig, logger *slog.Logger) external.BillingService {
	if cfg.StripeSecretKey.IsEmpty() {
		logger.Warn("STRIPE_SECRET_KEY not set, billing calls are stubbed")
		return external.NewStubBillingService(logger)
	}
	base := external.NewBaseClient(nil, "stripe", external.DefaultRetryPolicy())
	return external.NewStripeClient(base, cfg.StripeSecretKey, "", logger)
}

func cookieConfig(cfg config.AuthConfig) handlers.CookieConfig {
	c := handlers.DefaultCookieConfig()
	if cfg.SessionCookie != "" {
		c.Name = cfg.SessionCookie
	}
	c.Secure = cfg.SecureCookies
	if cfg.SessionTTL > 0 {
		c.MaxAge = int(cfg.SessionTTL.Seconds())
	}
	return c
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
