package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/roadgraph/pkg/http/router/controllers"
	router_helper "github.com/lintang-b-s/roadgraph/pkg/http/router/routerhelper"
	http_server "github.com/lintang-b-s/roadgraph/pkg/http/server"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type API struct {
	log *zap.Logger
}

func NewAPI(log *zap.Logger) *API {
	return &API{log: log}
}

// Options of the middleware chain. A non positive RateLimit disables rate limiting.
type Options struct {
	RateLimit    float64
	RateBurst    int
	QueryTimeout time.Duration
}

// Handler wires the routes and middlewares around routingService.
func (api *API) Handler(routingService controllers.RoutingService, opts Options) http.Handler {
	router := httprouter.New()

	corsHandler := cors.New(cors.Options{ //nolint:gocritic // ignore
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, //nolint:mnd // ignore
	})

	group := router_helper.NewRouteGroup(router, "/api")
	controllers.New(routingService, opts.QueryTimeout, api.log).Routes(group)

	mwChain := []alice.Constructor{corsHandler.Handler, EnforceJSONHandler, api.recoverPanic,
		RealIP, Heartbeat("healthz"), Logger(api.log)}
	if opts.RateLimit > 0 {
		mwChain = append(mwChain, Limit(opts.RateLimit, max(opts.RateBurst, 1)))
	}
	return alice.New(mwChain...).Then(router)
}

// Run serves the API until ctx is cancelled or the server fails, then shuts it down.
func (api *API) Run(ctx context.Context, config http_server.Config, routingService controllers.RoutingService,
	opts Options) error {
	api.log.Info("Run httprouter API")

	srv := http_server.New(ctx, api.Handler(routingService, opts), config)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		api.log.Info(fmt.Sprintf("API run on port %d", config.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		api.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
