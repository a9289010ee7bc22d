package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/teamcutter/patchr/internal/api"
	"github.com/teamcutter/patchr/internal/cache"
	"github.com/teamcutter/patchr/internal/config"
	"github.com/teamcutter/patchr/internal/extractor"
	"github.com/teamcutter/patchr/internal/manager"
	"github.com/teamcutter/patchr/internal/metrics"
	"github.com/teamcutter/patchr/internal/objectstore"
	"github.com/teamcutter/patchr/internal/state"
)

const (
	cacheDir     = "Cache/WL"
	manifestFile = "manifest.json"
	journalFile  = "patchr.db"
)

type options struct {
	configPath string
	installDir string
	logLevel   string
}

func Execute(ctx context.Context) error {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "patchr",
		Short:         "Keep a game client patched from an S3 bucket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to patchr.toml (default <dir>/patchr.toml)")
	rootCmd.PersistentFlags().StringVarP(&opts.installDir, "dir", "d", ".", "Game client directory")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log_level from the config")

	rootCmd.AddCommand(
		newInfoCmd(opts),
		newListCmd(opts),
		newInstallCmd(opts),
		newPatchExeCmd(opts),
		newReserveCmd(opts),
		newNewsCmd(opts),
		newHistoryCmd(opts),
		newClearCmd(opts),
		newVersionCmd(),
	)
	return rootCmd.ExecuteContext(ctx)
}

// session is everything one command needs. Close flushes metrics and
// releases the journal.
type session struct {
	cfg        *config.Config
	logger     zerolog.Logger
	mgr        *manager.Manager
	dispatcher *api.Dispatcher
	journal    *state.Journal
	metrics    *metrics.Transfers
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().Timestamp().Logger()
}

func loadConfig(opts *options) (*config.Config, zerolog.Logger, error) {
	dir, err := filepath.Abs(opts.installDir)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg, err := config.Load(opts.configPath, dir)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func newSession(opts *options) (*session, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	store, err := objectstore.NewS3(objectstore.S3Config{
		Endpoint:  cfg.Store.Endpoint,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Region:    cfg.Store.Region,
		Bucket:    cfg.Store.Bucket,
		UseSSL:    cfg.Store.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	c, err := cache.New(filepath.Join(cfg.InstallDir, filepath.FromSlash(cacheDir)))
	if err != nil {
		return nil, err
	}

	journal, err := state.NewJournal(filepath.Join(cfg.InstallDir, journalFile), logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	mgr, err := manager.New(manager.Params{
		Root:        cfg.InstallDir,
		Store:       store,
		Catalog:     catalog,
		Manifest:    state.New(filepath.Join(cfg.InstallDir, manifestFile), logger),
		Journal:     journal,
		Extractor:   extractor.New(),
		Cache:       c,
		Metrics:     m,
		Logger:      logger,
		RemotePaths: cfg.RemotePaths,
		StoreAddOn:  cfg.StoreAddOn,
		Executable:  cfg.Executable,
		Download:    cfg.Download,
	})
	if err != nil {
		journal.Close()
		return nil, err
	}

	return &session{
		cfg:        cfg,
		logger:     logger,
		mgr:        mgr,
		dispatcher: api.NewDispatcher(mgr),
		journal:    journal,
		metrics:    m,
	}, nil
}

func (s *session) Close() {
	s.mgr.Close()
	if err := s.journal.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("closing journal")
	}
	if s.cfg.MetricsFile == "" {
		return
	}
	if err := s.metrics.WriteFile(s.cfg.MetricsFile); err != nil {
		s.logger.Warn().Err(err).Str("path", s.cfg.MetricsFile).Msg("writing metrics")
	}
}
