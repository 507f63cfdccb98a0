package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/client"
	"github.com/grp-2-projet-elective/cesieats-back/internal/config"
	"github.com/grp-2-projet-elective/cesieats-back/internal/database"
	"github.com/grp-2-projet-elective/cesieats-back/internal/jobs"
	applog "github.com/grp-2-projet-elective/cesieats-back/internal/log"
	"github.com/grp-2-projet-elective/cesieats-back/internal/metrics"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/queue"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
	"github.com/grp-2-projet-elective/cesieats-back/internal/router"
	"github.com/grp-2-projet-elective/cesieats-back/internal/service"
	"github.com/grp-2-projet-elective/cesieats-back/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := applog.New(cfg.Env, "cesieats")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// needsDatabase reports whether any mounted service or the credential
// store lives in this process's MySQL database.
func needsDatabase(cfg config.Config) bool {
	if cfg.CredentialStore == "local" || cfg.Mounts("users") || cfg.Mounts("restaurants") {
		return true
	}
	for _, k := range model.Kinds {
		if cfg.Mounts(string(k)) {
			return true
		}
	}
	return false
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens := utils.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret)
	tokens.AccessTTL = cfg.AccessTTL
	tokens.RefreshTTL = cfg.RefreshTTL

	deps := router.Deps{
		Cfg:       cfg,
		Log:       logger,
		Metrics:   m,
		Gatherer:  reg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	}
	deps.Redis = config.NewRedisClient(config.LoadRedisConfig(), logger)

	var (
		db         *sql.DB
		tokenRepo  *repository.TokenRepo
		local      *client.Local
		store      service.CredentialStore
		authClient middleware.AuthorizationClient
	)
	if needsDatabase(cfg) {
		var err error
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return err
		}
		defer db.Close()
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = database.Migrate(mctx, db)
		cancel()
		if err != nil {
			return err
		}
		deps.DB = db
		deps.Users = repository.NewUserRepo(db)
		deps.Restaurants = repository.NewRestaurantRepo(db)
		deps.Documents = repository.NewDocumentRepo(db)
		tokenRepo = repository.NewTokenRepo(db)
		local = client.NewLocal(deps.Users, deps.Restaurants)
		deps.Credentials = client.Backend{
			Credentials: repository.NewCredentials(deps.Users, tokenRepo),
			Local:       local,
		}
		authClient = local
	}

	switch cfg.CredentialStore {
	case "local":
		store = repository.NewCredentials(deps.Users, tokenRepo)
	case "http":
		users := client.NewUsersHTTP(cfg.UsersAPIURL, cfg.CallTimeout)
		store = users
		if authClient == nil {
			authClient = users
		}
	case "amqp":
		users, err := client.DialUsersAMQP(cfg.AMQPURL, cfg.CallTimeout, logger.With().Str("component", "users-rpc").Logger())
		if err != nil {
			return err
		}
		defer users.Close()
		store = users
		if authClient == nil {
			authClient = users
		}
	default:
		return errors.New("unknown CREDENTIAL_STORE " + cfg.CredentialStore)
	}

	deps.Authz = middleware.NewAuthorizer(tokens, authClient, cfg.AuthorizedHosts, cfg.CallTimeout, logger, m)

	auth := service.NewAuthService(store, tokens, logger)
	auth.BcryptCost = cfg.BcryptCost
	if deps.Restaurants != nil {
		auth.Restaurants = deps.Restaurants
	}
	if cfg.EventsEnabled {
		auth.Events = service.NewQueuePublisher(cfg.AMQPURL, logger, m)
		consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, Dir: "logs", Log: logger}
		go func() { _ = consumer.Start(ctx) }()
	} else {
		auth.Events = service.LogPublisher{Log: logger, Metrics: m}
	}
	deps.Auth = auth

	if cfg.RPCEnabled && deps.Credentials != nil {
		rpc := &queue.RPCServer{URL: cfg.AMQPURL, Backend: deps.Credentials, Timeout: cfg.CallTimeout, Log: logger}
		go func() { _ = rpc.Start(ctx) }()
	}

	if tokenRepo != nil {
		sched := jobs.NewScheduler(tokenRepo, cfg.SweepSchedule, logger, m)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	e := router.New(deps)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Strs("services", cfg.Services).Str("credential_store", cfg.CredentialStore).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
