package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yingtu35/linkcrawler/internal/config"
	"github.com/yingtu35/linkcrawler/internal/export"
	"github.com/yingtu35/linkcrawler/internal/kafka"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/internal/progress"
	"github.com/yingtu35/linkcrawler/internal/storage"
	"github.com/yingtu35/linkcrawler/internal/store"
	"github.com/yingtu35/linkcrawler/internal/version"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

func main() {
	os.Exit(run())
}

func run() int {
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	configPath := flag.String("config", "", "Path to a JSON config file")
	url := flag.String("url", "", "URL to crawl")
	depth := flag.Int("depth", 2, "Maximum link depth to follow (0 checks only the target's links)")
	resources := flag.Bool("resources", false, "Also check images, stylesheets and scripts")
	loaderName := flag.String("loader", "static", "Page loader: static or browser")
	output := flag.String("output", "", "Basename for exported files (default derived from the target)")
	formats := flag.String("formats", "csv", "Comma-separated export formats: csv, json, xlsx")
	dbPath := flag.String("db", "", "SQLite file to archive reports in")
	redisAddr := flag.String("redis", "", "Redis address for crawl status")
	kafkaBroker := flag.String("kafka-broker", "", "Kafka broker for progress events")
	kafkaTopic := flag.String("kafka-topic", "", "Kafka topic for progress events")
	history := flag.Int("history", 0, "List the N most recent archived crawls from -db and exit")
	verbose := flag.Bool("verbose", false, "Log every link decision")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Errorf("Failed to load config: %v", err)
		return 1
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Target = *url
		case "depth":
			cfg.MaxDepth = *depth
		case "resources":
			cfg.IncludeResources = *resources
		case "loader":
			cfg.Loader = *loaderName
		case "output":
			cfg.Output = *output
		case "formats":
			cfg.Formats = config.ParseList(*formats, nil)
		case "db":
			cfg.DBPath = *dbPath
		case "redis":
			cfg.RedisAddr = *redisAddr
		case "kafka-broker":
			cfg.KafkaBroker = *kafkaBroker
		case "kafka-topic":
			cfg.KafkaTopic = *kafkaTopic
		case "verbose":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		}
	})

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown log level %q, using info", cfg.LogLevel)
	}

	logrus.Infof("Link Crawler v%s starting...", version.Version)

	if *history > 0 {
		return listHistory(cfg.DBPath, *history)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Errorf("Invalid configuration: %v", err)
		flag.Usage()
		return 1
	}

	logrus.Infof("Configuration loaded: target=%s, depth=%d, loader=%s, resources=%v",
		cfg.Target, cfg.MaxDepth, cfg.Loader, cfg.IncludeResources)

	loader, err := newLoader(cfg)
	if err != nil {
		logrus.Errorf("Failed to start page loader: %v", err)
		return 1
	}
	defer func() {
		if err := loader.Close(); err != nil {
			logrus.Warnf("Error closing page loader: %v", err)
		}
	}()

	events := progress.NewChannelObserver(1024)
	observers := progress.Multi{events, progress.NewLogObserver(logrus.WithField("component", "progress"))}

	if cfg.KafkaBroker != "" {
		publisher := kafka.NewEventPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				logrus.Warnf("Error closing Kafka publisher: %v", err)
			}
		}()
		observers = append(observers, publisher)
		logrus.Infof("Publishing progress to Kafka topic %s on %s", cfg.KafkaTopic, cfg.KafkaBroker)
	}

	var statusStore store.StatusStore
	if cfg.RedisAddr != "" {
		redisStore := store.NewRedisStatusStore(cfg.RedisAddr, cfg.RedisPrefix, cfg.RedisTTLDuration())
		defer redisStore.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			logrus.Warnf("Redis at %s is unreachable, crawl status will not be saved: %v", cfg.RedisAddr, err)
		} else {
			statusStore = redisStore
		}
		cancel()
	}

	verifier := linkcheck.NewVerifier(linkcheck.VerifierOptions{
		Timeout:   cfg.RequestTimeout(),
		UserAgent: cfg.UserAgent,
		Policy:    linkcheck.StatusPolicy{Min: cfg.AcceptedStatusMin, Max: cfg.AcceptedStatusMax},
	})
	checker := linkcheck.NewChecker(verifier, linkcheck.CheckerOptions{ForbiddenRetryHosts: cfg.RetryForbiddenHosts})
	scheduler := linkcheck.NewScheduler(checker, nil, linkcheck.SchedulerOptions{
		BatchSize:  cfg.BatchSize,
		BatchDelay: cfg.BatchDelay(),
	})
	crawler := webscraper.NewCrawler(loader, webscraper.NewExtractor(), scheduler, webscraper.CrawlerOptions{
		Observer:    observers,
		StatusStore: statusStore,
	})

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		logProgress(events.Events())
	}()

	// First signal cancels the crawl, a second one exits immediately
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logrus.Warnf("Received signal %v, cancelling crawl (send again to force exit)", sig)
		crawler.Cancel()
		if sig, ok = <-sigChan; ok {
			logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
			os.Exit(130)
		}
	}()

	report, err := crawler.Run(context.Background(), cfg.Target, cfg.MaxDepth, cfg.IncludeResources)
	events.Close()
	<-progressDone
	if err != nil {
		logrus.Errorf("Crawl failed: %v", err)
		return 1
	}
	if dropped := events.Dropped(); dropped > 0 {
		logrus.Debugf("%d progress events dropped", dropped)
	}

	export.PrintTable(os.Stdout, report)
	logrus.Infof("Total crawling time: %s", report.Duration().Round(time.Millisecond))

	code := 0
	if err := exportReport(cfg, report); err != nil {
		code = 1
	}
	if cfg.DBPath != "" {
		if err := archive(cfg.DBPath, report); err != nil {
			logrus.Errorf("Failed to archive report: %v", err)
			code = 1
		}
	}
	if report.State == webscraper.StateCancelled && code == 0 {
		code = 130
	}
	return code
}

func newLoader(cfg *config.Config) (webscraper.PageLoader, error) {
	log := logrus.WithField("component", "loader")
	switch cfg.Loader {
	case "browser":
		return webscraper.NewBrowserLoader(webscraper.BrowserLoaderOptions{
			Timeout:   cfg.PageLoadTimeout(),
			UserAgent: cfg.UserAgent,
			Logger:    log,
		})
	default:
		return webscraper.NewStaticLoader(webscraper.StaticLoaderOptions{
			Timeout:   cfg.PageLoadTimeout(),
			UserAgent: cfg.UserAgent,
			Logger:    log,
		}), nil
	}
}

// logProgress reports each finished page until the channel closes.
func logProgress(events <-chan progress.Event) {
	for e := range events {
		if e.Type != progress.EventPageComplete {
			continue
		}
		logrus.Infof("Scanned %d/%d pages, checked %d/%d links",
			e.PagesScanned, e.TotalPages, e.LinksChecked, e.LinksFound)
	}
}

func exportReport(cfg *config.Config, report *webscraper.Report) error {
	basename := cfg.Output
	if basename == "" {
		basename = export.DefaultBasename(report.Target, report.StartedAt)
	}

	var failed bool
	for _, format := range cfg.Formats {
		exporter, err := export.NewExporter(format)
		if err != nil {
			logrus.Errorf("Skipping export: %v", err)
			failed = true
			continue
		}
		if err := exporter.Export(report, basename); err != nil {
			failed = true
			continue
		}
		logrus.Infof("Results exported to %s.%s", basename, strings.ToLower(format))
	}
	if failed {
		return fmt.Errorf("one or more exports failed")
	}
	return nil
}

func archive(dbPath string, report *webscraper.Report) error {
	db, err := storage.NewStorage(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveReport(report); err != nil {
		return err
	}
	logrus.Infof("Report %s archived to %s", report.SessionID, dbPath)
	return nil
}

func listHistory(dbPath string, limit int) int {
	if dbPath == "" {
		logrus.Error("-history needs -db")
		return 1
	}
	db, err := storage.NewStorage(dbPath)
	if err != nil {
		logrus.Errorf("Failed to open archive: %v", err)
		return 1
	}
	defer db.Close()

	records, err := db.ListCrawls(limit)
	if err != nil {
		logrus.Errorf("Failed to list crawls: %v", err)
		return 1
	}
	for _, r := range records {
		fmt.Printf("%s  %s  %-9s  pages=%d links=%d broken=%d  %s\n",
			r.StartedAt.Format(time.RFC3339), r.SessionID, r.State, r.PagesScanned, r.LinksFound, r.BrokenLinks, r.Target)
	}
	return 0
}
