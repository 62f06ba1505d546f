package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/lintang-b-s/roadgraph/pkg/contracted"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
	"github.com/lintang-b-s/roadgraph/pkg/logger"
	"github.com/lintang-b-s/roadgraph/pkg/mmapfile"
	"github.com/lintang-b-s/roadgraph/pkg/osmparser"
	"github.com/lintang-b-s/roadgraph/pkg/routing"
	"github.com/lintang-b-s/roadgraph/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	mapFile      = flag.String("f", "./data/solo_jogja.osm.pbf", "openstreetmap pbf file")
	outFile      = flag.String("out", "./data/solo_jogja.routing", "contracted routing file")
	snapshotFile = flag.String("snapshot", "", "also write the uncontracted graph as a bzip2 snapshot")
	configDir    = flag.String("config", ".", "directory of config.yaml")
	mmapDir      = flag.String("mmap", "", "keep the graph arrays in memory mapped files under this directory")
	useMaxSpeed  = flag.Bool("maxspeed", false, "use the maxspeed tag of ways for travel times")
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
	viper.SetDefault("REGION_ZOOM", pkg.DEFAULT_REGION_ZOOM)
	viper.SetDefault("BLOCK_VERTEX_SIZE", pkg.DEFAULT_BLOCK_VERTEX_SIZE)
	viper.SetDefault("STREAM_BUFFER", pkg.DEFAULT_STREAM_BUFFER)
	viper.SetDefault("HUGE_ARRAY_CACHE_BLOCK_SIZE", 32)
	viper.SetDefault("HUGE_ARRAY_CACHE_BLOCKS", 1000)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Fatal("preprocessing failed", zap.Error(err))
	}
	log.Sugar().Infof("Preprocessing completed successfully.")
}

func run(ctx context.Context, log *zap.Logger) error {
	builder := osmparser.NewGraphBuilder(osmparser.DefaultInterpreter{}, log)
	builder.BufferSize = viper.GetInt("STREAM_BUFFER")
	if *mmapDir != "" {
		factory := mmapfile.NewFactory(*mmapDir)
		g, err := datastructure.NewMemoryMappedGeometricGraph[datastructure.LiveEdge](factory,
			datastructure.LiveEdgeCodec{}, "live",
			hugearray.WithCacheBlockSize(viper.GetInt64("HUGE_ARRAY_CACHE_BLOCK_SIZE")),
			hugearray.WithCacheSize(viper.GetInt("HUGE_ARRAY_CACHE_BLOCKS")))
		if err != nil {
			return fmt.Errorf("creating memory mapped graph: %w", err)
		}
		defer g.Close()
		builder.Graph = g
	}

	live, err := builder.Build(ctx, osmparser.OpenPBF(*mapFile, runtime.GOMAXPROCS(0)))
	if err != nil {
		return err
	}
	if *snapshotFile != "" {
		if err := datastructure.WriteGraph(*snapshotFile, live.Graph()); err != nil {
			return fmt.Errorf("writing graph snapshot: %w", err)
		}
		log.Info("wrote graph snapshot", zap.String("file", *snapshotFile))
	}

	car := routing.HighwayCar{UseMaxSpeed: *useMaxSpeed}
	ch, err := contracted.BuildUncontracted(live, car)
	if err != nil {
		return fmt.Errorf("weighing graph for %s: %w", car.UniqueName(), err)
	}
	defer ch.Graph().Close()

	f, err := os.Create(*outFile)
	if err != nil {
		return err
	}
	s := contracted.NewSerializer(log)
	s.RegionZoom = viper.GetUint32("REGION_ZOOM")
	s.BlockVertexSize = viper.GetUint32("BLOCK_VERTEX_SIZE")
	if err := s.Serialize(ctx, f, ch); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", *outFile, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("wrote routing file", zap.String("file", *outFile))
	return nil
}
