package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	URL         string
	MaxConns    int
	AutoMigrate bool
}

type RabbitMQConfig struct {
	URL          string
	BatchSize    int
	BatchTimeout time.Duration
	// RetryDelay is how long a failed job waits before redelivery.
	RetryDelay  time.Duration
	MaxAttempts int
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

type StdoutLogConfig struct {
	Level string
	JSON  bool
}

type RestConfig struct {
	Port        string
	CORSOrigins []string
}

type BrowserConfig struct {
	// Mode is "rod" for headless Chromium or "static" for plain HTTP.
	Mode              string
	ControlURL        string
	BinPath           string
	Headless          bool
	ProxyURL          string
	UserAgent         string
	NavigationTimeout time.Duration
}

type CrawlerConfig struct {
	SearchURL       string
	ItemURL         string
	PageInterval    time.Duration
	FirstRunPages   int
	SteadyPages     int
	Timezone        string
	StalePolicy     string
	UpsertBatchSize int
}

type SchedulerConfig struct {
	// Interval 0 disables the scheduler.
	Interval time.Duration
}

type AppConfig struct {
	AppName      string
	Database     DBConfig
	RabbitMQ     RabbitMQConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
	Rest         RestConfig
	Browser      BrowserConfig
	Crawler      CrawlerConfig
	Scheduler    SchedulerConfig
}

const (
	BrowserModeRod    = "rod"
	BrowserModeStatic = "static"
)

// LoadConfig reads an optional .env file and the environment. It does not
// check that the external services are configured; see RequireServices.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 && envPath[0] != "" {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: no .env file loaded (path: %v): %v", envPath, err)
	}

	cfg := &AppConfig{}
	cfg.AppName = getEnvAsString("APP_NAME", "crawlflare")

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.MaxConns = getEnvAsInt("DATABASE_MAX_CONNS", 0)
	cfg.Database.AutoMigrate = getEnvAsBool("DATABASE_AUTO_MIGRATE", false)

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	cfg.RabbitMQ.BatchSize = getEnvAsInt("RABBITMQ_BATCH_SIZE", 10)
	cfg.RabbitMQ.BatchTimeout = getEnvAsDuration("RABBITMQ_BATCH_TIMEOUT", 2*time.Second)
	cfg.RabbitMQ.RetryDelay = getEnvAsDuration("RABBITMQ_RETRY_DELAY", 10*time.Second)
	cfg.RabbitMQ.MaxAttempts = getEnvAsInt("JOB_MAX_ATTEMPTS", 3)

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.JSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	cfg.Rest.Port = getEnvAsString("REST_PORT", "8080")
	cfg.Rest.CORSOrigins = getEnvAsList("REST_CORS_ORIGINS")

	cfg.Browser.Mode = strings.ToLower(getEnvAsString("BROWSER_MODE", BrowserModeRod))
	cfg.Browser.ControlURL = os.Getenv("BROWSER_CONTROL_URL")
	cfg.Browser.BinPath = os.Getenv("BROWSER_BIN")
	cfg.Browser.Headless = getEnvAsBool("BROWSER_HEADLESS", true)
	cfg.Browser.ProxyURL = os.Getenv("BROWSER_PROXY_URL")
	cfg.Browser.UserAgent = os.Getenv("BROWSER_USER_AGENT")
	cfg.Browser.NavigationTimeout = getEnvAsDuration("BROWSER_NAVIGATION_TIMEOUT", 30*time.Second)
	if cfg.Browser.Mode != BrowserModeRod && cfg.Browser.Mode != BrowserModeStatic {
		return nil, fmt.Errorf("BROWSER_MODE must be %q or %q, got %q", BrowserModeRod, BrowserModeStatic, cfg.Browser.Mode)
	}

	cfg.Crawler.SearchURL = getEnvAsString("CRAWLER_SEARCH_URL", "https://www.mercari.com/jp/search/")
	cfg.Crawler.ItemURL = getEnvAsString("CRAWLER_ITEM_URL", "https://jp.mercari.com/item/")
	cfg.Crawler.PageInterval = getEnvAsDuration("CRAWLER_PAGE_INTERVAL", time.Second)
	cfg.Crawler.FirstRunPages = getEnvAsInt("CRAWLER_FIRST_RUN_PAGES", 10)
	cfg.Crawler.SteadyPages = getEnvAsInt("CRAWLER_STEADY_PAGES", 3)
	cfg.Crawler.Timezone = getEnvAsString("CRAWLER_TIMEZONE", "Asia/Tokyo")
	cfg.Crawler.StalePolicy = getEnvAsString("CRAWLER_STALE_POLICY", "delete")
	cfg.Crawler.UpsertBatchSize = getEnvAsInt("CRAWLER_UPSERT_BATCH_SIZE", 10)

	cfg.Scheduler.Interval = getEnvAsDuration("SCHEDULER_INTERVAL", 0)

	return cfg, nil
}

// RequireServices reports a missing database or broker URL.
func (c *AppConfig) RequireServices() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if c.RabbitMQ.URL == "" {
		return fmt.Errorf("RABBITMQ_URL environment variable is required")
	}
	return nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt falls back to defaultValue, with a warning, when the value is
// not an integer.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration accepts Go durations ("1500ms", "2s"). A bare integer is
// read as seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as duration: %v. Using default value: %s", key, valStr, err, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
