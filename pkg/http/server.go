package http

import (
	"context"

	http_router "github.com/lintang-b-s/roadgraph/pkg/http/router"
	"github.com/lintang-b-s/roadgraph/pkg/http/router/controllers"
	http_server "github.com/lintang-b-s/roadgraph/pkg/http/server"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Server struct {
	Log *zap.Logger
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log}
}

// Use serves routingService with the configuration read through viper and blocks until ctx is
// cancelled or the API fails.
func (s *Server) Use(
	ctx context.Context,
	useRateLimit bool,
	routingService controllers.RoutingService,
) error {
	viper.SetDefault("API_PORT", 6060)
	viper.SetDefault("API_TIMEOUT", "30s")
	viper.SetDefault("QUERY_TIMEOUT", "10s")
	viper.SetDefault("RATE_LIMIT_RPS", 50)
	viper.SetDefault("RATE_LIMIT_BURST", 100)

	config := http_server.Config{
		Port:    viper.GetInt("API_PORT"),
		Timeout: viper.GetDuration("API_TIMEOUT"),
	}
	opts := http_router.Options{
		QueryTimeout: viper.GetDuration("QUERY_TIMEOUT"),
	}
	if useRateLimit {
		opts.RateLimit = viper.GetFloat64("RATE_LIMIT_RPS")
		opts.RateBurst = viper.GetInt("RATE_LIMIT_BURST")
	}

	return http_router.NewAPI(s.Log).Run(ctx, config, routingService, opts)
}
