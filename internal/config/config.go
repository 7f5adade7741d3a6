package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Webhook  WebhookConfig
	Poller   PollerConfig
	Pipeline PipelineConfig
	Archive  *DatabaseConfig // nil when the Postgres archive sink is disabled
	RabbitMQ *RabbitMQConfig // nil when the AMQP sink is disabled
}

type ServerConfig struct {
	Host string
	Port string
}

// WebhookConfig holds the shared secrets used to verify inbound webhook
// signatures. An empty secret disables verification for that endpoint.
type WebhookConfig struct {
	IncidentIOSecret string
	GenericSecret    string
}

// FeedSource is one polled status feed.
type FeedSource struct {
	Name string
	URL  string
}

type PollerConfig struct {
	Feeds        []FeedSource
	Interval     time.Duration
	FetchTimeout time.Duration
}

type PipelineConfig struct {
	QueueSize int
	Workers   int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
	Queue    string
}

// Load reads configuration from environment variables. Core settings all
// have defaults; the archive and AMQP blocks are enabled by the presence of
// their lead variable and validated as a group when enabled.
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getDefault("SERVER_HOST", "0.0.0.0"),
			Port: getDefault("SERVER_PORT", "8000"),
		},
		Webhook: WebhookConfig{
			IncidentIOSecret: os.Getenv("INCIDENT_IO_WEBHOOK_SECRET"),
			GenericSecret:    os.Getenv("GENERIC_WEBHOOK_SECRET"),
		},
		Poller: PollerConfig{
			Interval:     time.Duration(getIntDefault("POLL_INTERVAL_SECONDS", 180)) * time.Second,
			FetchTimeout: time.Duration(getIntDefault("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Pipeline: PipelineConfig{
			QueueSize: getIntDefault("PIPELINE_QUEUE_SIZE", 256),
			Workers:   getIntDefault("PIPELINE_WORKERS", 4),
		},
	}

	feeds, err := parseFeedSources(os.Getenv("FEED_SOURCES"))
	if err != nil {
		return nil, err
	}
	config.Poller.Feeds = feeds

	if os.Getenv("ARCHIVE_DB_HOST") != "" {
		db, err := loadDatabaseConfig()
		if err != nil {
			return nil, err
		}
		config.Archive = db
	}

	if os.Getenv("RABBITMQ_URL") != "" || os.Getenv("RABBITMQ_HOST") != "" {
		rmq, err := loadRabbitMQConfig()
		if err != nil {
			return nil, err
		}
		config.RabbitMQ = rmq
	}

	return config, nil
}

// parseFeedSources parses FEED_SOURCES, a semicolon-separated list of
// Name=URL pairs. Order is preserved.
// Example: "OpenAI=https://status.openai.com/feed.rss;GitHub=https://www.githubstatus.com/history.rss"
func parseFeedSources(raw string) ([]FeedSource, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var feeds []FeedSource
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid FEED_SOURCES entry %q: expected Name=URL", pair)
		}
		feeds = append(feeds, FeedSource{
			Name: strings.TrimSpace(parts[0]),
			URL:  strings.TrimSpace(parts[1]),
		})
	}
	return feeds, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	db := &DatabaseConfig{
		Host:     get("ARCHIVE_DB_HOST"),
		Port:     get("ARCHIVE_DB_PORT"),
		User:     get("ARCHIVE_DB_USER"),
		Password: get("ARCHIVE_DB_PASSWORD"),
		DBName:   get("ARCHIVE_DB_NAME"),
		SSLMode:  getDefault("ARCHIVE_DB_SSLMODE", "disable"),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("archive sink enabled but missing environment variables: %v", missing)
	}
	return db, nil
}

func loadRabbitMQConfig() (*RabbitMQConfig, error) {
	rmq := &RabbitMQConfig{
		URL:   os.Getenv("RABBITMQ_URL"),
		Queue: getDefault("RABBITMQ_INCIDENT_QUEUE", "incidents"),
	}
	if rmq.URL != "" {
		return rmq, nil
	}

	var missing []string
	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	rmq.Host = get("RABBITMQ_HOST")
	rmq.Port = get("RABBITMQ_PORT")
	rmq.User = get("RABBITMQ_USER")
	rmq.Password = get("RABBITMQ_PASSWORD")
	rmq.VHost = getDefault("RABBITMQ_VHOST", "/")

	if len(missing) > 0 {
		return nil, fmt.Errorf("AMQP sink enabled but missing environment variables: %v", missing)
	}
	return rmq, nil
}

func getDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getIntDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	vhost := c.VHost
	if !strings.HasPrefix(vhost, "/") {
		vhost = "/" + vhost
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		c.User, c.Password, c.Host, c.Port, vhost)
}
