package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/generation"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	mw "server/internal/middleware"
	"server/internal/providers/video"
	"server/internal/quality"
	"server/internal/relocation"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init asset storage")
	}

	tasks := repo.NewTaskRepository(dbpool)
	ledger := repo.NewLedgerRepository(dbpool, logger)
	assets := repo.NewAssetRepository(dbpool)
	creds := credentials.NewStore(dbpool)

	providers, err := buildProviders(ctx, cfg, creds, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video providers")
	}

	gate := quality.NewGate(quality.Options{RequestTimeout: cfg.QualityCheckTimeout})

	relocator, err := relocation.NewRelocator(relocation.Options{
		Store:           store,
		Assets:          assets,
		Retention:       time.Duration(cfg.AssetRetentionDays) * 24 * time.Hour,
		Logger:          &logger,
		DownloadTimeout: cfg.DownloadTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init relocator")
	}

	generations, err := generation.NewService(generation.Options{
		Tasks:     tasks,
		Ledger:    ledger,
		Providers: providers,
		Gate:      gate,
		Relocator: relocator,
		URLs:      store,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init generation service")
	}

	var countryLookup mw.CountryLookup
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, continuing without country lookups")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := handlers.NewApp(generations, ledger, assets, store, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		DefaultLocale:   "en",
		CountryLookup:   countryLookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       store.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildProviders assembles the configured provider clients. API keys come
// from the environment first, then the integration token store, so keys
// can be rotated in the database without a restart being blocked on env
// changes. A provider without a key is simply not registered.
func buildProviders(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger *infra.Logger) (map[domain.ProviderKind]video.Client, error) {
	providers := make(map[domain.ProviderKind]video.Client)

	referenceKey := cfg.ReferenceAPIKey
	if referenceKey == "" {
		key, err := creds.Token(ctx, credentials.ProviderReference)
		if err != nil {
			return nil, err
		}
		referenceKey = key
	}
	if referenceKey != "" {
		client, err := video.NewReferenceClient(video.ReferenceOptions{
			APIKey:         referenceKey,
			BaseURL:        cfg.ReferenceBaseURL,
			Model:          cfg.ReferenceModel,
			Logger:         logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		providers[domain.ProviderReferenceToVideo] = client
	} else {
		logger.Warn().Msg("reference video provider disabled: no api key configured")
	}

	ugcKey := cfg.UGCAPIKey
	if ugcKey == "" {
		key, err := creds.Token(ctx, credentials.ProviderUGC)
		if err != nil {
			return nil, err
		}
		ugcKey = key
	}
	if ugcKey != "" {
		client, err := video.NewUGCClient(video.UGCOptions{
			APIKey:         ugcKey,
			BaseURL:        cfg.UGCBaseURL,
			Model:          cfg.UGCModel,
			Logger:         logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		providers[domain.ProviderTextToVideoUGC] = client
	} else {
		logger.Warn().Msg("ugc video provider disabled: no api key configured")
	}

	return providers, nil
}
