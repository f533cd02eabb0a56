// Command shopd serves the shop over the frame protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"shopwire/config"
	"shopwire/imagestore"
	"shopwire/logging"
	"shopwire/middleware"
	"shopwire/registry"
	"shopwire/server"
	"shopwire/shop"
	"shopwire/store"
	"shopwire/store/sqlstore"
	"shopwire/transport"
)

func main() {
	path := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shopd: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, "shopd", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("shopd stopped")
		os.Exit(1)
	}
}

func openStore(cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlstore.Open(cfg.Path)
	case "memory":
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func connOptions(cfg config.Config, log zerolog.Logger) transport.Options {
	opts := transport.DefaultOptions()
	opts.HeartbeatInterval = cfg.Heartbeat.Interval
	opts.DeadAfter = cfg.Heartbeat.DeadAfter
	opts.MaxCorruptFrames = cfg.Limits.MaxCorruptFrames
	opts.Logger = log
	return opts
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	images, err := imagestore.New(cfg.Limits.ImageCacheCount, cfg.Limits.MaxImageSize, cfg.Limits.ImageCacheBytes)
	if err != nil {
		return err
	}

	shopOpts := shop.DefaultOptions()
	shopOpts.MaxImageSize = cfg.Limits.MaxImageSize
	shopOpts.DefaultPageSize = cfg.Limits.PageSize
	shopOpts.MaxPageSize = cfg.Limits.MaxPageSize
	shopOpts.SessionTTL = cfg.Limits.SessionTTL
	shopOpts.InitialBalance = cfg.Limits.InitialBalance
	shopOpts.Logger = log
	mux := server.NewMux()
	shop.New(st, images, shopOpts).Register(mux)

	opts := server.DefaultOptions()
	opts.Conn = connOptions(cfg, log)
	opts.ServiceName = cfg.Server.ServiceName
	opts.RegisterTTL = cfg.Registry.TTL
	opts.MaxImageSize = cfg.Limits.MaxImageSize
	opts.ChunkSize = cfg.Transfer.ChunkSize
	opts.MaxTransfers = cfg.Transfer.MaxTransfers
	opts.TransferTimeout = cfg.Transfer.Timeout
	opts.Logger = log
	srv := server.NewServer(mux, opts)

	srv.Use(middleware.Recover(log))
	if cfg.Metrics.Enabled {
		srv.Use(middleware.MetricsBuilder{Namespace: cfg.Metrics.Namespace, Subsystem: "server"}.Build())
	}
	srv.Use(middleware.Logging(log))
	if cfg.Limits.Rate > 0 {
		srv.Use(middleware.RateLimit(cfg.Limits.Rate, cfg.Limits.Burst))
	}
	if cfg.Server.HandlerTimeout > 0 {
		srv.Use(middleware.Timeout(cfg.Server.HandlerTimeout))
	}
	if cfg.Server.Retries > 0 {
		srv.Use(middleware.Retry(cfg.Server.Retries, 50*time.Millisecond, log))
	}

	var reg registry.Registry
	if cfg.Registry.Enabled {
		etcd, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints, cfg.Registry.DialTimeout)
		if err != nil {
			return err
		}
		defer etcd.Close()
		reg = etcd
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}
	advertise := cfg.Server.AdvertiseAddr
	if advertise == "" {
		advertise = ln.Addr().String()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ServeListener(ln, advertise, reg)
	})

	var metrics *http.Server
	if cfg.Metrics.Enabled {
		handler := http.NewServeMux()
		handler.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
		metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
			if err := metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		err := srv.Shutdown(cfg.Server.ShutdownTimeout)
		if metrics != nil {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			err = errors.Join(err, metrics.Shutdown(sctx))
		}
		return err
	})
	return g.Wait()
}
