package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vulpo-bot/vulpo/pkg/albums"
	"github.com/vulpo-bot/vulpo/pkg/config"
	"github.com/vulpo-bot/vulpo/pkg/fuzzysearch"
	"github.com/vulpo-bot/vulpo/pkg/gate"
	"github.com/vulpo-bot/vulpo/pkg/i18n"
	"github.com/vulpo-bot/vulpo/pkg/imghash"
	"github.com/vulpo-bot/vulpo/pkg/ingest"
	"github.com/vulpo-bot/vulpo/pkg/logger"
	"github.com/vulpo-bot/vulpo/pkg/metrics"
	"github.com/vulpo-bot/vulpo/pkg/queue"
	"github.com/vulpo-bot/vulpo/pkg/resolver"
	"github.com/vulpo-bot/vulpo/pkg/sites"
	"github.com/vulpo-bot/vulpo/pkg/store"
	"github.com/vulpo-bot/vulpo/pkg/telegram"
	"github.com/vulpo-bot/vulpo/pkg/tracing"
	"github.com/vulpo-bot/vulpo/pkg/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "vulpo",
		Short:         "Reverse image source annotation service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(workerCommand(), ingestCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func workerCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume and process background annotation jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), concurrency)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "job concurrency, overrides CHANNEL_WORKERS")
	return cmd
}

func ingestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Poll platform updates and enqueue discover jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context())
		},
	}
}

func runWorker(ctx context.Context, concurrency int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.LogFormat, cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Sync()

	shutdown, err := tracing.Init(ctx, cfg.OTLPEndpoint, "vulpo-worker")
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	redisOpts, err := redis.ParseURL(cfg.RedisDSN)
	if err != nil {
		return fmt.Errorf("parse redis dsn: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	tg, err := telegram.NewClient(cfg.TelegramAPIToken)
	if err != nil {
		return err
	}

	producer, err := queue.NewProducer(cfg.FaktoryURL)
	if err != nil {
		return err
	}

	bundles, err := i18n.NewCache()
	if err != nil {
		return err
	}

	res := resolver.New(resolver.Options{
		HashCache: db,
		UserOrder: db,
		Searcher:  fuzzysearch.NewClient(fuzzysearch.Options{APIKey: cfg.FuzzySearchToken}),
		Files:     tg,
		Fetcher:   imghash.NewFetcher(imghash.MaxDownloadSize),
		Sites:     sites.NewDefaultSet(siteCredentials(cfg)),
		Albums:    albums.New(redisClient),
	})

	if concurrency < 1 {
		concurrency = cfg.ChannelWorkers
	}

	w := worker.New(worker.Options{
		Editor:      tg,
		Queue:       producer,
		Gate:        gate.New(redisClient),
		Resolver:    res,
		Groups:      db,
		Bundles:     bundles,
		Concurrency: concurrency,
	})

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsHost != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsHost) })
	}
	g.Go(func() error { return w.Run(ctx) })

	return waitClean(g)
}

func runIngest(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.LogFormat, cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Sync()

	shutdown, err := tracing.Init(ctx, cfg.OTLPEndpoint, "vulpo-ingest")
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	tg, err := telegram.NewClient(cfg.TelegramAPIToken)
	if err != nil {
		return err
	}
	producer, err := queue.NewProducer(cfg.FaktoryURL)
	if err != nil {
		return err
	}

	poller := ingest.New(ingest.Options{Source: tg, Queue: producer})

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsHost != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsHost) })
	}
	g.Go(func() error { return poller.Run(ctx) })

	return waitClean(g)
}

// waitClean treats context cancellation as a normal shutdown.
func waitClean(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func siteCredentials(cfg config.Config) sites.Credentials {
	return sites.Credentials{
		FurAffinityCookieA:    cfg.FurAffinityCookieA,
		FurAffinityCookieB:    cfg.FurAffinityCookieB,
		E621Login:             cfg.E621Login,
		E621APIKey:            cfg.E621APIKey,
		WeasylAPIToken:        cfg.WeasylAPIToken,
		InkbunnyUsername:      cfg.InkbunnyUsername,
		InkbunnyPassword:      cfg.InkbunnyPassword,
		TwitterConsumerKey:    cfg.TwitterConsumerKey,
		TwitterConsumerSecret: cfg.TwitterConsumerSecret,
	}
}
