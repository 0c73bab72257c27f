package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrissnell/ashdetect/internal/catalog"
	"github.com/chrissnell/ashdetect/internal/server"
	"github.com/chrissnell/ashdetect/pkg/config"
	"github.com/chrissnell/ashdetect/pkg/pipeline"
	"github.com/chrissnell/ashdetect/pkg/product"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

func (a *App) loadConfig() (*config.ConfigData, error) {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewPipeline builds a classification pipeline from cfg.
func NewPipeline(cfg *config.ConfigData, logger *zap.SugaredLogger) (*pipeline.Pipeline, error) {
	src, err := cfg.Ephemeris.NewSource()
	if err != nil {
		return nil, err
	}
	p := pipeline.New(logger)
	p.Ephemeris = src
	p.Thresholds = cfg.Classifier.Thresholds
	p.Neighborhood = cfg.Neighborhood.Options()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *App) openCatalog(ctx context.Context, cfg *config.ConfigData) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return nil, nil
	}
	cat, err := catalog.Open(ctx, cfg.Catalog.Path, a.logger)
	if err != nil {
		return nil, fmt.Errorf("error opening run catalog: %w", err)
	}
	return cat, nil
}

// ClassifyFile classifies the scene bundle at scenePath and writes the product
// to outPath. The run is recorded when a catalog is configured.
func (a *App) ClassifyFile(ctx context.Context, scenePath, outPath string) (*pipeline.Result, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(cfg, a.logger)
	if err != nil {
		return nil, err
	}

	sc, err := product.ReadScene(scenePath)
	if err != nil {
		return nil, fmt.Errorf("error reading scene: %w", err)
	}

	started := time.Now()
	res, err := p.Run(ctx, sc)
	if err != nil {
		return nil, err
	}

	if outPath != "" {
		if err := product.WriteResult(outPath, res); err != nil {
			return nil, fmt.Errorf("error writing product: %w", err)
		}
		a.logger.Infow("product written", "path", outPath)
	}

	cat, err := a.openCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cat != nil {
		defer cat.Close()
		run, err := cat.Record(ctx, catalog.FromResult(res, started))
		if err != nil {
			return nil, err
		}
		a.logger.Infow("run recorded", "id", run.ID)
	}
	return res, nil
}

// Serve runs the HTTP service and blocks until shutdown
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	p, err := NewPipeline(cfg, a.logger)
	if err != nil {
		return err
	}
	cat, err := a.openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
	} else {
		a.logger.Info("run catalog disabled")
	}

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			a.logger.Info("shutdown signal received, initiating graceful shutdown...")
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := server.New(cfg.Server.Addr(), p, cat, a.logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
