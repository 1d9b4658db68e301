package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/sitecraft/internal/api"
	"github.com/good-yellow-bee/sitecraft/internal/metrics"
	"github.com/good-yellow-bee/sitecraft/internal/sitecache"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
	"github.com/good-yellow-bee/sitecraft/pkg/config"
	"github.com/good-yellow-bee/sitecraft/pkg/logger"
)

var (
	configFile string
	envFile    string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sitecraft-server",
	Short: "sitecraft server - site builder REST API and live site host",
	Long: `sitecraft server stores projects and their draft and published
site configs, authenticates editors, and serves published sites.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetBuildInfo("sitecraft-server"))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStorage(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info().Str("path", cfg.Database.Path).Msg("database migrated")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the config")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file, the YAML config and the CLI flags, in
// increasing precedence, and initializes logging.
func loadConfig() (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var (
		cfg *Config
		err error
	)
	if configFile != "" {
		cfg, err = LoadConfig(configFile)
	} else {
		cfg, err = DefaultConfig()
		if err == nil {
			err = cfg.Validate()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}

func openStorage(path string) (*storage.SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info().Str("path", cfg.Database.Path).Msg("database initialized")

	cache, err := sitecache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("create site cache: %w", err)
	}
	defer cache.Close()
	logger.Info().Str("backend", cache.Backend()).Dur("ttl", cfg.Cache.TTL).Msg("site cache ready")

	srv, err := api.New(&api.Config{
		Address:          cfg.Server.HTTPAddress,
		PublicBaseURL:    cfg.Server.PublicBaseURL,
		JWTSecret:        []byte(cfg.Auth.JWTSecret),
		TLSEnabled:       cfg.Server.TLS.Enabled,
		TLSCertFile:      cfg.Server.TLS.CertFile,
		TLSKeyFile:       cfg.Server.TLS.KeyFile,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		AccessTokenTTL:   cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:  cfg.Auth.RefreshTokenTTL,
		RateLimitPerIP:   cfg.Auth.RateLimitPerIP,
		RateLimitPerUser: cfg.Auth.RateLimitPerUser,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  cfg.Auth.LockoutDuration,
		BcryptCost:       cfg.Auth.BcryptCost,
		Verbose:          cfg.Verbose,
	}, store, cache)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}

	scheduler, err := startMaintenance(cfg.Auth.TokenCleanupSchedule, srv.Tokens())
	if err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", config.Version).Msg("starting sitecraft-server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Address, cfg.Metrics.Path)
		g.Go(metricsSrv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// tokenCleaner is the part of auth.TokenService the maintenance job uses.
type tokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// startMaintenance schedules the expired refresh-token purge.
func startMaintenance(schedule string, tokens tokenCleaner) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		purgeExpiredTokens(context.Background(), tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule token cleanup %q: %w", schedule, err)
	}
	c.Start()
	logger.Info().Str("schedule", schedule).Msg("token cleanup scheduled")
	return c, nil
}

func purgeExpiredTokens(ctx context.Context, tokens tokenCleaner) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := tokens.CleanupExpiredTokens(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("purge expired refresh tokens")
		return
	}
	metrics.ExpiredTokensPurged.Add(float64(n))
	if n > 0 {
		logger.Info().Int64("count", n).Msg("purged expired refresh tokens")
	}
}
