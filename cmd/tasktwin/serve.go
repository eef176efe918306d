package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/iamrohanmehra/task-twin-betax/internal/config"
	"github.com/iamrohanmehra/task-twin-betax/pkg/authcache"
	"github.com/iamrohanmehra/task-twin-betax/pkg/authstate"
	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
	"github.com/iamrohanmehra/task-twin-betax/pkg/authz/rest"
	"github.com/iamrohanmehra/task-twin-betax/pkg/identity"
	"github.com/iamrohanmehra/task-twin-betax/pkg/server"
	"github.com/iamrohanmehra/task-twin-betax/pkg/tasks"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		adminEmail string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskTwin server",
		Long: `Start the TaskTwin HTTP server.

Configuration is read from tasktwin.json in the working directory
(or the file named by --config); a missing file means defaults.

Examples:
  tasktwin serve
  tasktwin serve --port=8080 --admin=root@example.com
  tasktwin serve --config=/etc/tasktwin.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, host, port, adminEmail)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tasktwin.json", "Path to the config file")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")
	cmd.Flags().StringVar(&adminEmail, "admin", "", "Grant admin to this email in the local store")

	return cmd
}

func runServe(configPath, host string, port int, adminEmail string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Host = host
	}
	if port > 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store := tasks.NewStore()
	if adminEmail != "" {
		store.SetAdmin(adminEmail, true)
	}

	cache, err := buildCache(cfg)
	if err != nil {
		return err
	}

	var lookup authz.Lookup
	switch cfg.Store.Mode {
	case "rest":
		opts := []rest.Option{}
		if cfg.Store.APIKey != "" {
			opts = append(opts, rest.WithAPIKey(cfg.Store.APIKey))
		}
		lookup = rest.New(cfg.Store.URL, opts...)
	default:
		lookup = tasks.NewLookup(store)
	}

	hub := identity.NewHub()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	machineOpts := []authstate.Option{
		authstate.WithCache(cache),
		authstate.WithLogger(logger),
		authstate.WithMetrics(registry),
	}
	if d := time.Duration(cfg.Auth.BootstrapTimeoutSeconds) * time.Second; d > 0 {
		machineOpts = append(machineOpts, authstate.WithBootstrapTimeout(d))
	}
	if d := time.Duration(cfg.Auth.ResolveTimeoutSeconds) * time.Second; d > 0 {
		machineOpts = append(machineOpts, authstate.WithResolveTimeout(d))
	}
	if d := time.Duration(cfg.Auth.RetryDelayMillis) * time.Millisecond; d > 0 {
		machineOpts = append(machineOpts, authstate.WithRetryDelay(d))
	}

	machine := authstate.New(hub, lookup, machineOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	machine.Start(ctx)
	defer machine.Close()

	s := server.New(machine, hub, store,
		server.WithLogger(logger),
		server.WithMetricsRegistry(registry),
	)
	httpSrv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr(), "store", cfg.Store.Mode, "cache", cfg.Cache.Backend)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("shut down")
	return nil
}

// buildCache assembles the authorization cache for the configured backend.
func buildCache(cfg *config.Config) (*authcache.Cache, error) {
	var opts []authcache.Option
	if ttl := cfg.CacheTTL(); ttl > 0 {
		opts = append(opts, authcache.WithTTL(ttl))
	}

	switch cfg.Cache.Backend {
	case "", "memory":
		return authcache.New(authcache.NewMemoryKV(), opts...), nil
	case "file":
		kv, err := authcache.NewFileKV(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		return authcache.New(kv, opts...), nil
	case "s3":
		kv := authcache.NewS3KV(s3Client(cfg.Cache.Region), cfg.Cache.Bucket, cfg.Cache.Prefix)
		return authcache.New(kv, opts...), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// s3Client builds an S3 client from environment credentials. The full
// aws config loader is deliberately not pulled in for a single client.
func s3Client(region string) *s3.Client {
	if region == "" {
		region = "us-east-1"
	}
	creds := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		}, nil
	})
	return s3.New(s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(creds),
	})
}
