package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geocoder"
	"github.com/lintang-b-s/eventradar/pkg/http"
	"github.com/lintang-b-s/eventradar/pkg/http/usecases"
	"github.com/lintang-b-s/eventradar/pkg/logger"
	"github.com/lintang-b-s/eventradar/pkg/metrics"
	"github.com/lintang-b-s/eventradar/pkg/spatialindex"
	"github.com/lintang-b-s/eventradar/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	envFile      = flag.String("env_file", ".env", "dotenv file loaded before reading config, ignored when missing")
	useRateLimit = flag.Bool("rate_limit", false, "enable per client rate limiting (also USE_RATE_LIMIT)")
)

func main() {
	flag.Parse()
	_ = godotenv.Load(*envFile)

	if err := util.ReadConfig(); err != nil {
		panic(err)
	}

	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck // ignore

	m, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	cache := geocoder.NewMapCache()

	// without a token every load reports the missing token through its geocode status
	var gc geocoder.Geocoder
	mapbox, err := geocoder.NewMapboxGeocoder(geocoder.Config{
		BaseURL:        viper.GetString("GEOCODER_BASE_URL"),
		Token:          util.MapboxToken(),
		RequestsPerSec: viper.GetFloat64("GEOCODER_RPS"),
		Timeout:        viper.GetDuration("GEOCODER_TIMEOUT"),
	}, cache, logger, m)
	if err != nil {
		logger.Warn("geocoding disabled", zap.Error(err))
	} else {
		gc = mapbox
	}

	resolver := discovery.NewResolver(gc, cache, viper.GetInt("GEOCODER_CONCURRENCY"), logger, m)

	backend := eventsapi.NewClient(viper.GetString("BACKEND_URL"), viper.GetString("BACKEND_TOKEN"),
		viper.GetDuration("BACKEND_TIMEOUT"), logger)

	newIndex := func() usecases.SpatialIndex {
		return spatialindex.NewRtree[discovery.EventPoint]()
	}

	discoveryService := usecases.NewDiscoveryService(logger, backend, resolver, newIndex, m,
		viper.GetInt("BACKEND_PAGE_LIMIT"))

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}

	api := http.NewServer(logger)
	if _, err := api.Use(ctx, logger, prometheus.DefaultGatherer,
		*useRateLimit || viper.GetBool("USE_RATE_LIMIT"), discoveryService); err != nil {
		panic(err)
	}

	go func() {
		if err := api.Wait(); err != nil && ctx.Err() == nil {
			logger.Fatal("API stopped", zap.Error(err))
		}
	}()

	signal := http.GracefulShutdown()
	cleanup()

	done := make(chan error, 1)
	go func() { done <- api.Wait() }()
	select {
	case <-done:
	case <-time.After(viper.GetDuration("API_TIMEOUT") + time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("Eventradar discovery server stopped", zap.String("signal", signal.String()))
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
