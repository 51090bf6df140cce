package v1

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/config"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/lookups"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/reports/archive"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuations"
)

// ValuationsAPI holds the valuations API dependencies
type ValuationsAPI struct {
	Handler    *valuations.Handler
	Service    valuations.Service
	Repository *valuations.GormRepository
	Lookups    lookups.Provider

	cache *lookups.CachedProvider
}

// SetupValuationsAPI wires the lookup provider, the engine, the valuation
// store and the optional S3 report archive over one PostgreSQL connection pool
func SetupValuationsAPI(ctx context.Context, db *sqlx.DB, cfg config.Config, log *zap.Logger) (api *ValuationsAPI, err error) {
	// Lookup tables are read with sqlx
	var provider lookups.Provider = lookups.NewProvider(lookups.NewPostgresRepository(db), log)
	var cache *lookups.CachedProvider
	if ttl := cfg.Valuation.LookupCacheTTL(); ttl > 0 {
		cache = lookups.NewCachedProvider(provider, ttl)
		provider = cache
		defer func() {
			if err != nil {
				cache.Close()
			}
		}()
	}

	// Valuation records go through gorm on the same pool
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.Logging.Level)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	repository := valuations.NewRepository(gdb)
	if cfg.Database.AutoMigrate {
		if err := repository.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate valuation tables: %w", err)
		}
	}

	var opts []valuations.Option
	if cfg.Archive.Enabled {
		store, err := archive.NewFromConfig(ctx, cfg.Archive, log)
		if err != nil {
			return nil, fmt.Errorf("failed to set up report archive: %w", err)
		}
		opts = append(opts, valuations.WithArchive(store))
	}

	engine := valuation.NewEngine(log, cfg.Valuation.EngineConfig())
	service := valuations.NewService(repository, provider, engine, log, opts...)

	return &ValuationsAPI{
		Handler:    valuations.NewHandler(service),
		Service:    service,
		Repository: repository,
		Lookups:    provider,
		cache:      cache,
	}, nil
}

// RegisterValuationsRoutes registers the valuations routes on the router group
func RegisterValuationsRoutes(router *gin.RouterGroup, api *ValuationsAPI) {
	api.Handler.RegisterRoutes(router)
}

// Close stops the lookup cache janitor
func (a *ValuationsAPI) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "warn", "info":
		return logger.Warn
	default:
		return logger.Error
	}
}
