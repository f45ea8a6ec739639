package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/internal/config"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/feed"
	"github.com/rx3lixir/voicebank/internal/metrics"
	"github.com/rx3lixir/voicebank/internal/recordings"
	"github.com/rx3lixir/voicebank/internal/scripts"
	"github.com/rx3lixir/voicebank/internal/server"
	"github.com/rx3lixir/voicebank/internal/sessions"
	"github.com/rx3lixir/voicebank/internal/storage/postgres"
	"github.com/rx3lixir/voicebank/internal/storage/s3"
	"github.com/rx3lixir/voicebank/pkg/logger"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	flags := pflag.NewFlagSet("voicebankd", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to yaml config")
	issueToken := flags.String("issue-token", "", "print an access token for the contributor id and exit ('new' generates one)")
	config.RegisterServerFlags(flags)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "voicebankd: %v\n", err)
		os.Exit(2)
	}

	// Initializing and validating config
	cm, err := config.NewConfigManager(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting config file: %v\n", err)
		os.Exit(1)
	}
	c := cm.GetConfig()
	if err := c.ValidateServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	authService := auth.NewService(c.GeneralParams.SecretKey, c.RecordingParams.AccessTokenTTL)

	if *issueToken != "" {
		if err := printToken(authService, *issueToken); err != nil {
			fmt.Fprintf(os.Stderr, "voicebankd: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Initializing logger
	log, err := logger.New(logger.Config{
		Env:       c.GeneralParams.Env,
		Level:     c.GeneralParams.LogLevel,
		AddSource: false,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	log.Info(
		"Config loaded successfully!",
		"env", c.GeneralParams.Env,
		"http_server_address", c.HttpServerParams.GetAddress(),
		"database", c.MainDBParams.Name,
		"bucket", c.S3Params.BucketName,
	)

	if err := run(c, authService, log); err != nil {
		log.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(c *config.Config, authService *auth.Service, log *logger.Logger) error {
	// Global context, cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, c.MainDBParams.GetDSN())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	log.Info("Database connection established", "db", c.MainDBParams.Name)

	objects, err := s3.Connect(ctx, s3.Options{
		Endpoint:        c.S3Params.Endpoint,
		AccessKeyID:     c.S3Params.AccessKeyID,
		SecretAccessKey: c.S3Params.SecretAccessKey,
		Bucket:          c.S3Params.BucketName,
		UseSSL:          c.S3Params.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}
	log.Info("Object storage ready", "endpoint", c.S3Params.Endpoint, "bucket", c.S3Params.BucketName)

	m := metrics.New()
	catalog := duration.Default()

	scriptService := scripts.NewService(
		scripts.NewPostgresStore(pool),
		c.RecordingParams.ScriptCacheSize,
		c.RecordingParams.ScriptCacheTTL,
		m,
	)
	sessionService := sessions.NewService(
		sessions.NewPostgresStore(pool),
		scriptService,
		c.RecordingParams.SessionTTL,
		m,
	)

	hub := feed.NewHub(m.FeedClients, log.Component("feed"))

	router := server.NewRouter(server.RouterConfig{
		ScriptHandler:  scripts.NewHandler(scriptService, catalog, log.Component("scripts")),
		SessionHandler: sessions.NewHandler(sessionService, log.Component("sessions")),
		RecordingHandler: recordings.NewHandler(
			recordings.NewPostgresStore(pool),
			recordings.NewMinIOStore(objects, c.S3Params.BucketName),
			sessionService,
			scriptService,
			catalog,
			hub,
			m,
			recordings.Options{
				MaxUploadBytes: c.RecordingParams.MaxUploadBytes,
				URLExpiry:      c.S3Params.PresignTTL,
			},
			log.Component("recordings"),
		),
		FeedHandler: feed.NewHandler(hub, nil, log.Component("feed")),
		AuthService: authService,
		Metrics:     m,
		Health: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return s3.Ping(ctx, objects, c.S3Params.BucketName)
		},
		Log: log.Component("http"),
	})

	srv := server.New(c.HttpServerParams.GetAddress(), router, log.Logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run()
		return nil
	})

	g.Go(srv.Start)

	// Block until we receive a signal or a component fails
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.RecordingParams.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		hub.Shutdown()
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func printToken(authService *auth.Service, contributor string) error {
	id := uuid.New()
	if contributor != "new" {
		parsed, err := uuid.Parse(contributor)
		if err != nil {
			return fmt.Errorf("invalid contributor id: %w", err)
		}
		id = parsed
	}

	token, err := authService.GenerateAccessToken(id)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
