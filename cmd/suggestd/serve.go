package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ASHISH26940/suggestd/internal/config"
	"github.com/ASHISH26940/suggestd/internal/metrics"
	"github.com/ASHISH26940/suggestd/internal/persistence"
	"github.com/ASHISH26940/suggestd/internal/query"
	"github.com/ASHISH26940/suggestd/internal/refresh"
	"github.com/ASHISH26940/suggestd/internal/server"
	"github.com/ASHISH26940/suggestd/internal/source"
	"github.com/ASHISH26940/suggestd/internal/store"
	"github.com/ASHISH26940/suggestd/internal/translator"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"
)

var configFlag = cli.StringFlag{Name: "config, c", EnvVar: "SUGGESTD_CONFIG", Usage: "path to a TOML or YAML configuration file"}

var serveCommand = cli.Command{
	Name:      "serve",
	Usage:     "Runs the suggest server",
	ArgsUsage: "[<address> <port> <endpoint>]",
	Flags: []cli.Flag{
		configFlag,
		cli.StringFlag{Name: "host, H", Usage: "address on which to listen"},
		cli.IntFlag{Name: "port, p", Usage: "port number on which to listen"},
		cli.StringFlag{Name: "endpoint, e", Usage: "path the suggest API answers on"},
		cli.StringFlag{Name: "source, s", Usage: "dataset location (path, file://, s3:// or minio://)"},
		cli.DurationFlag{Name: "interval, i", Usage: "period between dataset reloads"},
	},
	Action: runServe,
}

// loadConfig builds the configuration from defaults, the optional config file
// and the command line, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.New()
	if path := c.String("config"); path != "" {
		if err := cfg.Load(path); err != nil {
			return nil, err
		}
	}

	// Legacy form: serve <address> <port> <endpoint>
	if args := c.Args(); len(args) > 0 {
		if len(args) != 3 {
			return nil, errors.Errorf("expected <address> <port> <endpoint>, got %d arguments", len(args))
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid port %q", args[1])
		}
		cfg.Host, cfg.Port, cfg.Endpoint = args[0], port, args[2]
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("endpoint") {
		cfg.Endpoint = c.String("endpoint")
	}
	if c.IsSet("source") {
		cfg.Source.Location = c.String("source")
	}
	if c.IsSet("interval") {
		cfg.Source.RefreshInterval = c.Duration("interval")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// newLoader opens the configured dataset source.
func newLoader(ctx context.Context, cfg *config.Config) (*source.Loader, error) {
	format, err := persistence.ParseFormat(cfg.Source.Format)
	if err != nil {
		return nil, err
	}
	src, err := source.Open(ctx, cfg.Source.Location, source.Options{
		Lock: cfg.Source.Lock,
		S3: source.S3Options{
			Region:    cfg.Source.S3.Region,
			Endpoint:  cfg.Source.S3.Endpoint,
			PathStyle: cfg.Source.S3.PathStyle,
		},
		MinIO: source.MinIOOptions{
			Endpoint:  cfg.Source.MinIO.Endpoint,
			Region:    cfg.Source.MinIO.Region,
			AccessKey: cfg.Source.MinIO.AccessKey,
			SecretKey: cfg.Source.MinIO.SecretKey,
			UseSSL:    cfg.Source.MinIO.UseSSL,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open source")
	}
	return source.NewLoader(src, format), nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}

	st := store.NewStore()
	m := metrics.New()
	scheduler := refresh.New(st, loader,
		refresh.WithInterval(cfg.Source.RefreshInterval),
		refresh.WithTimeout(cfg.Source.Timeout),
		refresh.WithSkipUnchanged(cfg.Source.SkipUnchanged),
		refresh.WithRecorder(m),
		refresh.WithLogger(logger.With("component", "refresh")),
	)
	tr := translator.New(query.NewEngine(st), cfg.Endpoint, translator.WithRecorder(m))
	srv := server.New(cfg, tr, st, m, scheduler, logger.With("component", "http"), serverHeader)

	logger.Info("starting", "addr", cfg.Addr(), "endpoint", tr.Endpoint(),
		"source", loader.Location(), "interval", cfg.Source.RefreshInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		reloadOnHangup(gctx, scheduler, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "server")
	}
	logger.Info("stopped")
	return nil
}

// reloadOnHangup runs a refresh cycle for every SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, scheduler *refresh.Scheduler, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("SIGHUP received, reloading dataset")
			if _, err := scheduler.Refresh(ctx); err != nil {
				logger.Warn("reload", "error", err)
			}
		}
	}
}
