package internal

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"

	"github.com/kuroweb/crawlflare/internal/adapters/browser"
	logger_adapter "github.com/kuroweb/crawlflare/internal/adapters/logger"
	"github.com/kuroweb/crawlflare/internal/adapters/mercarifetcher"
	rabbitmq_adapter "github.com/kuroweb/crawlflare/internal/adapters/rabbitmq"
	"github.com/kuroweb/crawlflare/internal/configs"
	"github.com/kuroweb/crawlflare/internal/constants"
	"github.com/kuroweb/crawlflare/internal/core/port"
	fluentlogger "github.com/kuroweb/crawlflare/pkg/fluent_logger"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_common"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_producer"
)

// Browser is a BrowserPort that owns process or connection resources.
type Browser interface {
	port.BrowserPort
	io.Closer
}

// NewLogger builds the stdout logger and, when enabled, the Fluent Bit
// logger behind one MultiLoggerAdapter. The returned client is nil when
// Fluent Bit is disabled and must be closed last.
func NewLogger(cfg *configs.AppConfig) (port.LoggerPort, *fluent.Fluent, error) {
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(cfg.StdoutLogger.Level),
		IsJSON:   cfg.StdoutLogger.JSON,
		UseColor: !cfg.StdoutLogger.JSON,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if cfg.FluentBit.Enabled {
		var err error
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      cfg.FluentBit.Host,
			Port:      cfg.FluentBit.Port,
			TagPrefix: cfg.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(cfg.FluentBit.Level))
		if err != nil {
			_ = fluentClient.Close()
			return nil, nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiLoggerAdapter(activeLoggers...)
	if err != nil {
		if fluentClient != nil {
			_ = fluentClient.Close()
		}
		return nil, nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	return multiLogger.WithFields(port.Fields{"service_name": cfg.AppName}), fluentClient, nil
}

// NewBrowser picks the browser implementation from BROWSER_MODE.
func NewBrowser(cfg configs.BrowserConfig, logger port.LoggerPort) (Browser, error) {
	switch cfg.Mode {
	case configs.BrowserModeStatic:
		b, err := browser.NewCollyBrowser(browser.CollyConfig{
			DomainGlob:     "*mercari.com*",
			RandomDelay:    500 * time.Millisecond,
			RequestTimeout: cfg.NavigationTimeout,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		rodCfg := browser.DefaultRodConfig()
		rodCfg.ControlURL = cfg.ControlURL
		rodCfg.BinPath = cfg.BinPath
		rodCfg.Headless = cfg.Headless
		rodCfg.ProxyURL = cfg.ProxyURL
		rodCfg.UserAgent = cfg.UserAgent
		rodCfg.NavigationTimeout = cfg.NavigationTimeout
		b, err := browser.NewRodBrowser(rodCfg, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// NewFetcher builds the Mercari crawler for the configured endpoints, budget
// and time zone.
func NewFetcher(cfg configs.CrawlerConfig, b port.BrowserPort) (*mercarifetcher.MercariFetcherAdapter, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		if cfg.Timezone != "Asia/Tokyo" {
			return nil, fmt.Errorf("load crawler timezone %q: %w", cfg.Timezone, err)
		}
		loc = mercarifetcher.TokyoLocation()
	}

	return mercarifetcher.NewMercariFetcherAdapter(b, mercarifetcher.Config{
		SearchURL:     cfg.SearchURL,
		ItemURL:       cfg.ItemURL,
		PageInterval:  cfg.PageInterval,
		FirstRunPages: cfg.FirstRunPages,
		SteadyPages:   cfg.SteadyPages,
		Location:      loc,
	})
}

// NewJobPublisher opens a confirm-mode publisher on the crawl exchange and
// wraps it into the job queue adapter.
func NewJobPublisher(connManager *rabbitmq_common.ConnectionManager, url string, logger port.LoggerPort) (*rabbitmq_producer.Publisher, *rabbitmq_adapter.RabbitMQCrawlJobQueueAdapter, error) {
	producer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: url},
		ExchangeName:             constants.CrawlExchange,
		ExchangeType:             "direct",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		ConfirmDelivery:          true,
		Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(logger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
	}, connManager)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create producer: %w", err)
	}

	queue, err := rabbitmq_adapter.NewRabbitMQCrawlJobQueueAdapter(producer, constants.ListCrawlRoutingKey, constants.DetailCrawlRoutingKey)
	if err != nil {
		_ = producer.Close()
		return nil, nil, err
	}
	return producer, queue, nil
}

func parseLogLevel(levelStr string) slog.Level {
	level, err := logger_adapter.ParseLevel(levelStr)
	if err != nil {
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
	return level
}
