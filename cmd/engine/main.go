package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/lintang-b-s/roadgraph/pkg/contracted"
	"github.com/lintang-b-s/roadgraph/pkg/http"
	"github.com/lintang-b-s/roadgraph/pkg/http/usecases"
	"github.com/lintang-b-s/roadgraph/pkg/logger"
	"github.com/lintang-b-s/roadgraph/pkg/routing"
	"github.com/lintang-b-s/roadgraph/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	routingFile  = flag.String("f", "./data/solo_jogja.routing", "contracted routing file written by the preprocessor")
	configDir    = flag.String("config", ".", "directory of config.yaml")
	useRateLimit = flag.Bool("ratelimit", false, "rate limit api requests")
)

func main() {
	flag.Parse()
	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := util.ReadConfig(*configDir); err != nil {
		log.Fatal("reading config", zap.Error(err))
	}
	viper.SetDefault("SEARCH_RADIUS_DEG", pkg.DEFAULT_SEARCH_RADIUS_DEG)
	viper.SetDefault("DATA_SOURCE_CACHE_SIZE", 1000)
	viper.SetDefault("REGION_ZOOM", pkg.DEFAULT_REGION_ZOOM)

	car := routing.HighwayCar{}
	s := contracted.NewSerializer(log)
	s.CacheSize = viper.GetInt("DATA_SOURCE_CACHE_SIZE")
	// only used for files that do not record their region zoom
	s.RegionZoom = viper.GetUint32("REGION_ZOOM")
	ds, err := s.Open(*routingFile, []string{car.UniqueName()})
	if err != nil {
		log.Fatal("opening routing file", zap.String("file", *routingFile), zap.Error(err))
	}
	defer ds.Close()
	log.Info("opened routing file", zap.String("file", *routingFile), zap.Uint32("vertices", ds.VertexCount()))

	routingService := usecases.NewRoutingService(log, ds, car, viper.GetFloat64("SEARCH_RADIUS_DEG"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := http.NewServer(log).Use(ctx, *useRateLimit, routingService); err != nil {
		log.Error("api stopped", zap.Error(err))
	}
	log.Info("roadgraph routing server stopped")
}
