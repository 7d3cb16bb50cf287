package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/eventradar/pkg/http/router/controllers"
	router_helper "github.com/lintang-b-s/eventradar/pkg/http/router/routerhelper"
	http_server "github.com/lintang-b-s/eventradar/pkg/http/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	httpSwagger "github.com/swaggo/http-swagger"
)

type API struct {
	log      *zap.Logger
	hub      *controllers.Hub
	gatherer prometheus.Gatherer
}

func NewAPI(log *zap.Logger, gatherer prometheus.Gatherer) *API {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &API{log: log, gatherer: gatherer}
}

//	@title			Eventradar API
//	@version		1.0
//	@description	Nearby event discovery: resolves event locations and returns the events closest to the viewer.

//	@license.name	BSD License
//	@license.url	https://opensource.org/license/bsd-2-clause

// @host		localhost:6060
// @BasePath	/api
func (api *API) Handler(
	useRateLimit bool,
	nearbyLimit int,
	discoveryService controllers.DiscoveryService,
) http.Handler {
	router := httprouter.New()

	corsHandler := cors.New(cors.Options{ //nolint:gocritic // ignore
		AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300, //nolint:mnd // ignore
	})

	router.GET("/doc/*any", swaggerHandler)
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(api.gatherer, promhttp.HandlerOpts{}))

	api.hub = controllers.NewHub(discoveryService, viper.GetDuration("GEOLOCATION_TIMEOUT"),
		viper.GetDuration("GEOLOCATION_MAX_AGE"), api.log)
	router.GET("/ws/nearby", api.serveWebsocket(nearbyLimit))

	group := router_helper.NewRouteGroup(router, "/api")
	discoveryRoutes := controllers.New(discoveryService, nearbyLimit, api.log)
	discoveryRoutes.Routes(group)

	var mwChain []alice.Constructor
	mwChain = append(mwChain, corsHandler.Handler, api.recoverPanic,
		RealIP, RequestID, Heartbeat("healthz"), Logger(api.log))
	if useRateLimit {
		mwChain = append(mwChain, Limit)
	}
	return alice.New(mwChain...).Then(router)
}

// Run serves the API until ctx is done or the server fails.
func (api *API) Run(
	ctx context.Context,
	config http_server.Config,
	useRateLimit bool,
	nearbyLimit int,
	discoveryService controllers.DiscoveryService,
) error {
	api.log.Info("Run httprouter API")

	srv := http_server.New(ctx, api.Handler(useRateLimit, nearbyLimit, discoveryService), config)
	api.log.Info(fmt.Sprintf("API run on port %d", config.Port))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		api.log.Info("HTTP server stopped", zap.Error(err))
		api.hub.RemoveAllUser()
		return err

	case <-ctx.Done():
		api.log.Info("Context canceled, shutting down server")
		api.hub.RemoveAllUser()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func swaggerHandler(res http.ResponseWriter, req *http.Request, p httprouter.Params) {
	httpSwagger.WrapHandler(res, req)
}
