package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres_adapter "github.com/kuroweb/crawlflare/internal/adapters/postgres"
	rabbitmq_adapter "github.com/kuroweb/crawlflare/internal/adapters/rabbitmq"
	"github.com/kuroweb/crawlflare/internal/adapters/rest"
	"github.com/kuroweb/crawlflare/internal/adapters/scheduler"
	"github.com/kuroweb/crawlflare/internal/configs"
	"github.com/kuroweb/crawlflare/internal/constants"
	"github.com/kuroweb/crawlflare/internal/contracts"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
	"github.com/kuroweb/crawlflare/internal/core/usecase"
	"github.com/kuroweb/crawlflare/pkg/postgres"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_common"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_consumer"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_producer"
	"github.com/kuroweb/crawlflare/schemas"
)

// App is the composition root of the crawl service.
type App struct {
	config       *configs.AppConfig
	dbPool       *pgxpool.Pool
	connManager  *rabbitmq_common.ConnectionManager
	producer     *rabbitmq_producer.Publisher
	browser      Browser
	fluentClient *fluent.Fluent
	logger       port.LoggerPort

	listListener   port.EventListenerPort
	detailListener port.EventListenerPort
	restServer     *rest.Server
	scheduler      *scheduler.CrawlScheduler
}

// NewApp builds every dependency. Anything opened before a failure is closed
// again before the error is returned.
func NewApp(envPath ...string) (app *App, err error) {
	appConfig, err := configs.LoadConfig(envPath...)
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}
	if err := appConfig.RequireServices(); err != nil {
		return nil, err
	}

	baseLogger, fluentClient, err := NewLogger(appConfig)
	if err != nil {
		return nil, err
	}

	a := &App{config: appConfig, fluentClient: fluentClient}
	a.logger = baseLogger.WithFields(port.Fields{"component": "app"})
	defer func() {
		if err != nil {
			a.close()
		}
	}()
	a.logger.Info("Logger system initialized", port.Fields{"fluent_enabled": appConfig.FluentBit.Enabled})

	stalePolicy, err := domain.ParseStalePolicy(appConfig.Crawler.StalePolicy)
	if err != nil {
		return nil, err
	}

	validator, err := contracts.NewValidator(schemas.SchemasFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load message schemas: %w", err)
	}
	a.logger.Debug("Message schemas loaded", port.Fields{"schemas": validator.Keys()})

	a.dbPool, err = postgres.NewClient(context.Background(), postgres.Config{
		DatabaseURL: appConfig.Database.URL,
		MaxConns:    int32(appConfig.Database.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.logger.Info("Successfully connected to PostgreSQL pool!", nil)

	if appConfig.Database.AutoMigrate {
		if err := postgres.ApplySchema(context.Background(), a.dbPool, postgres_adapter.Schema); err != nil {
			return nil, err
		}
		a.logger.Info("Database schema applied", nil)
	}

	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"}))
	a.connManager, err = rabbitmq_common.GetManager(appConfig.RabbitMQ.URL, connManagerBridge)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	var jobQueue port.CrawlJobQueuePort
	a.producer, jobQueue, err = NewJobPublisher(a.connManager, appConfig.RabbitMQ.URL, baseLogger)
	if err != nil {
		return nil, err
	}

	a.browser, err = NewBrowser(appConfig.Browser, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	fetcher, err := NewFetcher(appConfig.Crawler, a.browser)
	if err != nil {
		return nil, err
	}

	resultRepo, err := postgres_adapter.NewPostgresResultRepository(a.dbPool)
	if err != nil {
		return nil, err
	}
	productRepo, err := postgres_adapter.NewPostgresProductRepository(a.dbPool)
	if err != nil {
		return nil, err
	}

	syncListUC := usecase.NewSyncListUseCase(productRepo, resultRepo, fetcher, jobQueue, usecase.SyncListOptions{
		BatchSize:   appConfig.Crawler.UpsertBatchSize,
		StalePolicy: stalePolicy,
	})
	syncDetailUC := usecase.NewSyncDetailUseCase(resultRepo, fetcher)
	maxAttempts := appConfig.RabbitMQ.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = usecase.DefaultMaxAttempts
	}
	dispatchUC := usecase.NewDispatchJobUseCase(syncListUC, syncDetailUC, maxAttempts)
	requestCrawlUC := usecase.NewRequestCrawlUseCase(productRepo, jobQueue)
	resultsUC := usecase.NewResultsUseCase(productRepo, resultRepo)

	listListener, err := rabbitmq_adapter.NewJobConsumerAdapter(
		jobConsumerConfig(appConfig, constants.ListCrawlQueue, constants.ListCrawlRoutingKey, constants.ListCrawlConsumerTag),
		appConfig.RabbitMQ.BatchSize, appConfig.RabbitMQ.BatchTimeout, maxAttempts,
		dispatchUC, validator, baseLogger, a.connManager,
	)
	if err != nil {
		return nil, err
	}
	a.listListener = listListener

	detailListener, err := rabbitmq_adapter.NewJobConsumerAdapter(
		jobConsumerConfig(appConfig, constants.DetailCrawlQueue, constants.DetailCrawlRoutingKey, constants.DetailCrawlConsumerTag),
		appConfig.RabbitMQ.BatchSize, appConfig.RabbitMQ.BatchTimeout, maxAttempts,
		dispatchUC, validator, baseLogger, a.connManager,
	)
	if err != nil {
		return nil, err
	}
	a.detailListener = detailListener
	a.logger.Info("Crawl job listeners initialized", nil)

	handlers := rest.NewCrawlHandlers(requestCrawlUC, resultsUC, a.dbPool)
	a.restServer = rest.NewServer(appConfig.Rest.Port, handlers, baseLogger.WithFields(port.Fields{"component": "rest"}), appConfig.Rest.CORSOrigins)
	a.scheduler = scheduler.NewCrawlScheduler(requestCrawlUC, appConfig.Scheduler.Interval, baseLogger)

	return a, nil
}

func jobConsumerConfig(cfg *configs.AppConfig, queue, routingKey, tag string) rabbitmq_consumer.ConsumerConfig {
	return rabbitmq_consumer.ConsumerConfig{
		Config:                 rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
		QueueName:              queue,
		DeclareQueue:           true,
		DurableQueue:           true,
		ExchangeNameForBind:    constants.CrawlExchange,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    "direct",
		DurableExchangeForBind: true,
		RoutingKeyForBind:      routingKey,
		PrefetchCount:          cfg.RabbitMQ.BatchSize,
		ConsumerTag:            tag,
		EnableRetryMechanism:   true,
		RetryExchange:          constants.RetryExchangeFor(queue),
		RetryQueue:             constants.RetryQueueFor(queue),
		RetryTTL:               int(cfg.RabbitMQ.RetryDelay / time.Millisecond),
	}
}

// Run starts the listeners, the REST server and the scheduler, and blocks
// until a signal arrives or one of them fails.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	var wg sync.WaitGroup
	componentErrors := make(chan error, 3)

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.restServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("Error stopping REST server", err, nil)
		}

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		a.close()
	}()

	a.logger.Info("Application is starting...", nil)

	startListener := func(name string, listener port.EventListenerPort) {
		defer wg.Done()
		listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
		listenerLogger.Info("Starting listener...", nil)

		if err := listener.Start(appCtx); err != nil {
			listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
			componentErrors <- fmt.Errorf("%s error: %w", name, err)
			return
		}
		listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
	}

	wg.Add(3)
	go startListener("List Crawl Listener", a.listListener)
	go startListener("Detail Crawl Listener", a.detailListener)
	go func() {
		defer wg.Done()
		a.scheduler.Run(appCtx)
	}()

	// not in wg: Stop in the deferred shutdown makes Start return
	go func() {
		if err := a.restServer.Start(); err != nil {
			componentErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received signal, shutting down", port.Fields{"signal": receivedSignal.String()})
	case runErr = <-componentErrors:
		a.logger.Error("A critical component failed, shutting down", runErr, nil)
	}

	cancelApp()
	return runErr
}

// close releases resources in reverse order of creation. It is safe on a
// partially built App.
func (a *App) close() {
	var errs []error
	for _, l := range []port.EventListenerPort{a.listListener, a.detailListener} {
		if l != nil {
			errs = append(errs, l.Close())
		}
	}
	if a.browser != nil {
		errs = append(errs, a.browser.Close())
	}
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.connManager != nil {
		errs = append(errs, a.connManager.Close())
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.logger.Info("PostgreSQL pool closed.", nil)
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("Errors while releasing resources", err, nil)
	}

	a.logger.Info("Application shut down gracefully.", nil)
	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			log.Printf("App: Error closing fluent client: %v", err)
		}
	}
}
