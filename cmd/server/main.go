package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/gin-gonic/gin"

	"github.com/ggeejehd-eng/mj36/app_config"
	"github.com/ggeejehd-eng/mj36/archive"
	"github.com/ggeejehd-eng/mj36/auth"
	"github.com/ggeejehd-eng/mj36/bus"
	"github.com/ggeejehd-eng/mj36/cache"
	"github.com/ggeejehd-eng/mj36/engine"
	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/server"
	"github.com/ggeejehd-eng/mj36/server/middlewares"
	"github.com/ggeejehd-eng/mj36/store"
	"github.com/ggeejehd-eng/mj36/utils/dotenv"
	serviceFlag "github.com/ggeejehd-eng/mj36/utils/flag"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
	"github.com/ggeejehd-eng/mj36/viewstate"
)

var configPath = flag.String("config", "", "path to the yaml app config, defaults apply when empty")

func main() {
	flag.Parse()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	config := app_config.DefaultAppConfig()
	if *configPath != "" {
		config = app_config.ParseAppConfig(*configPath)
	}

	remote := store.NewRedisStore(time.Duration(config.STORE_OP_TIMEOUT_MS) * time.Millisecond)
	if !remote.Ready() {
		Logger.Log.Warn("redis not reachable yet, reads stay empty and writes fail until it is")
	}

	var sink store.ArchiveSink = archive.NopSink{}
	var archiveSink *archive.Sink
	if !config.DISABLE_ARCHIVE {
		var err error
		archiveSink, err = archive.NewSink()
		if err != nil {
			Logger.Log.Fatal("cannot connect to archive database: ", err)
		}
		sink = archiveSink
	}

	b := bus.New(config.EVENT_BUS_BUFFER_SIZE)
	adapter := store.NewAdapter(remote)
	c := cache.NewManager(adapter, b)
	authManager := auth.NewManager(adapter)

	signals := server.NewSignalChannels()
	gateway := server.NewPushGateway(signals)

	view := viewstate.NewEngine(c, b, authManager, gateway, gateway)
	if err := viewstate.RegisterDefaultRenderers(view, c, authManager); err != nil {
		Logger.Log.Fatal("cannot register renderers: ", err)
	}
	for _, section := range model.AllSections {
		if err := view.RegisterContainer(section, gateway.SectionContainer(section)); err != nil {
			Logger.Log.Fatal("cannot register container: ", err)
		}
	}

	rootCtx, cancel := context.WithCancel(context.Background())

	c.LoadMessages(rootCtx)
	if err := view.Start(rootCtx); err != nil {
		Logger.Log.Fatal("cannot start view engine: ", err)
	}

	statsdClient, err := statsd.New("127.0.0.1:8125")
	if err != nil {
		Logger.Log.Error("statsd unavailable, continuing without metrics: ", err)
	}

	modules := []engine.Module{
		engine.NewStoreListener(engine.StoreListenerConfig{Name: "store_listener"}, adapter, c, b),
		engine.NewSweeper(engine.SweeperConfig{
			Name:  "sweeper",
			Every: time.Duration(config.SWEEP_EVERY_SECOND) * time.Second,
		}, adapter, sink, statsdClient),
	}
	if statsdClient != nil {
		modules = append(modules,
			engine.NewReporter(engine.ReporterConfig{
				Name:       "reporter",
				FlushEvery: time.Duration(config.REPORT_EVERY_SECOND) * time.Second,
			}, statsdClient, b))
	}

	e := engine.NewEngine(modules, rootCtx, cancel)
	go e.Run()

	handlers := server.NewHandlers(adapter, c, view, authManager, signals)
	requireUser := middlewares.RequireUser(authManager)
	if serviceFlag.ByPassAuth {
		requireUser = func(*gin.Context) {}
	}
	router := server.NewRouter(handlers, authManager, middlewares.Session(), requireUser)

	go func() {
		Logger.Log.Info("api server starts up on ", config.SERVER_ADDR)
		if err := router.Run(config.SERVER_ADDR); err != nil {
			Logger.Log.Fatal("server exited: ", err)
		}
	}()

	// Shutdown order matters: stop the background modules first, then the bus
	// so in-flight events drain, then the store connection.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	e.Shutdown()
	if err := b.Close(); err != nil {
		Logger.Log.Error("close bus: ", err)
	}
	if err := remote.Close(); err != nil {
		Logger.Log.Error("close store: ", err)
	}
	if archiveSink != nil {
		if err := archiveSink.Close(); err != nil {
			Logger.Log.Error("close archive: ", err)
		}
	}
	Logger.Log.Info("api server shutdown")
}
