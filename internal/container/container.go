package container

import (
	"context"

	"go.uber.org/zap"

	"goinsight/adapters/api"
	"goinsight/adapters/excel"
	"goinsight/adapters/store"
	"goinsight/app"
	"goinsight/internal/config"
	"goinsight/internal/errors"
	"goinsight/internal/logging"
	"goinsight/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	Store  ports.DatasetRepository
	Parser *excel.DataReader

	// Services
	Analytics *app.AnalyticsService

	sqlStore *store.SQLStore
}

// New builds the logger from cfg.Log and wires every component
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger wires every component around an existing logger
func NewWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if err := c.initStore(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to initialize dataset store")
	}

	c.Parser = excel.NewDataReader(cfg.ParseOptions(), logger)
	c.Analytics = app.NewAnalyticsService(c.Parser, c.Store, app.Settings{
		Quality:            cfg.Quality,
		Analysis:           cfg.Analysis,
		MaxConcurrentScans: cfg.Server.MaxConcurrentScans,
	}, logger)

	logger.Info("container initialized",
		zap.String("store", cfg.Store.Driver),
		zap.Int64("max_concurrent_scans", cfg.Server.MaxConcurrentScans))
	return c, nil
}

// initStore selects the dataset store for the configured driver
func (c *Container) initStore(ctx context.Context) error {
	switch c.Config.Store.Driver {
	case config.StoreMemory, "":
		c.Store = store.NewMemoryStore()
		return nil
	case config.StoreSQLite, config.StorePostgres:
		sqlStore, err := store.OpenSQL(ctx, c.Config.Store.Driver, c.Config.Store.DSN, c.Logger)
		if err != nil {
			return err
		}
		c.sqlStore = sqlStore
		c.Store = sqlStore
		return nil
	default:
		return errors.Newf(errors.CodeConfigInvalid, "unknown store driver %q", c.Config.Store.Driver)
	}
}

// APIHandler returns the HTTP handler configured from the server section
func (c *Container) APIHandler() *api.Handler {
	return api.NewHandler(c.Analytics, api.Options{
		UploadDir:       c.Config.Server.UploadDir,
		MaxUploadBytes:  c.Config.Server.MaxUploadMB * 1024 * 1024,
		AllowLocalPaths: c.Config.Server.AllowLocalPaths,
	}, c.Logger)
}

// Shutdown closes the store connection and flushes the logger
func (c *Container) Shutdown(_ context.Context) error {
	var err error
	if c.sqlStore != nil {
		err = c.sqlStore.Close()
	}
	_ = c.Logger.Sync()
	return err
}
