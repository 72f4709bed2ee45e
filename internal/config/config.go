package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/toolsascode/gfm/internal/backends"
)

// Config holds the runtime configuration shared by the server, the
// worker and the CLI. Everything comes from GFM_* environment
// variables.
type Config struct {
	Logging struct {
		Level  string // debug, info, warn, error
		Format string // "text" or "json"
	}
	Server struct {
		Addr        string
		CORSOrigins []string
		APIToken    string
	}
	State struct {
		Driver string // "sqlite3", "postgres" or "mysql"
		DSN    string
	}
	Queue struct {
		Type               string // "kafka", "pulsar" or "none"
		KafkaBrokers       []string
		KafkaTopic         string
		KafkaGroupID       string
		PulsarURL          string
		PulsarTopic        string
		PulsarSubscription string
	}
	Lock struct {
		Type          string // "local" or "etcd"
		EtcdEndpoints []string
		EtcdUsername  string
		EtcdPassword  string
		DialTimeout   time.Duration
		TTL           int // etcd session lease in seconds
	}
	Generator struct {
		ModelsDir     string
		MigrationsDir string
		DefaultApp    string
	}
	Graphs map[string]*backends.ConnectionConfig
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Graphs: make(map[string]*backends.ConnectionConfig),
	}

	// Logging configuration
	config.Logging.Level = getEnvOrDefault("GFM_LOG_LEVEL", "info")
	config.Logging.Format = getEnvOrDefault("GFM_LOG_FORMAT", "text")
	switch config.Logging.Format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("GFM_LOG_FORMAT must be \"text\" or \"json\", got %q", config.Logging.Format)
	}

	// Server configuration
	config.Server.Addr = getEnvOrDefault("GFM_HTTP_ADDR", ":7070")
	config.Server.APIToken = os.Getenv("GFM_API_TOKEN")
	if origins := os.Getenv("GFM_CORS_ORIGINS"); origins != "" {
		config.Server.CORSOrigins = splitList(origins)
	}

	// State store configuration
	config.State.Driver = getEnvOrDefault("GFM_STATE_DRIVER", "sqlite3")
	switch config.State.Driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("GFM_STATE_DRIVER must be sqlite3, postgres or mysql, got %q", config.State.Driver)
	}
	config.State.DSN = getEnvOrDefault("GFM_STATE_DSN", "gfm_state.db")

	// Queue configuration
	config.Queue.Type = getEnvOrDefault("GFM_QUEUE_TYPE", "none")
	switch config.Queue.Type {
	case "kafka", "pulsar", "none":
	default:
		return nil, fmt.Errorf("GFM_QUEUE_TYPE must be kafka, pulsar or none, got %q", config.Queue.Type)
	}

	// Kafka configuration
	if kafkaBrokers := os.Getenv("GFM_QUEUE_KAFKA_BROKERS"); kafkaBrokers != "" {
		config.Queue.KafkaBrokers = splitList(kafkaBrokers)
	} else {
		kafkaHost := getEnvOrDefault("GFM_QUEUE_KAFKA_HOST", "localhost")
		kafkaPort := getEnvOrDefault("GFM_QUEUE_KAFKA_PORT", "9092")
		config.Queue.KafkaBrokers = []string{fmt.Sprintf("%s:%s", kafkaHost, kafkaPort)}
	}
	config.Queue.KafkaTopic = getEnvOrDefault("GFM_QUEUE_KAFKA_TOPIC", "gfm-migrations")
	config.Queue.KafkaGroupID = getEnvOrDefault("GFM_QUEUE_KAFKA_GROUP_ID", "gfm-migration-workers")

	// Pulsar configuration
	config.Queue.PulsarURL = getEnvOrDefault("GFM_QUEUE_PULSAR_URL", "pulsar://localhost:6650")
	config.Queue.PulsarTopic = getEnvOrDefault("GFM_QUEUE_PULSAR_TOPIC", "gfm-migrations")
	config.Queue.PulsarSubscription = getEnvOrDefault("GFM_QUEUE_PULSAR_SUBSCRIPTION", "gfm-migration-workers")

	// Lock configuration
	config.Lock.Type = getEnvOrDefault("GFM_LOCK_TYPE", "local")
	switch config.Lock.Type {
	case "local", "etcd":
	default:
		return nil, fmt.Errorf("GFM_LOCK_TYPE must be local or etcd, got %q", config.Lock.Type)
	}
	config.Lock.EtcdEndpoints = splitList(getEnvOrDefault("GFM_LOCK_ETCD_ENDPOINTS", "localhost:2379"))
	config.Lock.EtcdUsername = os.Getenv("GFM_LOCK_ETCD_USERNAME")
	config.Lock.EtcdPassword = os.Getenv("GFM_LOCK_ETCD_PASSWORD")
	dialTimeout, err := getEnvDuration("GFM_LOCK_DIAL_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	config.Lock.DialTimeout = dialTimeout
	ttl, err := getEnvInt("GFM_LOCK_TTL", 60)
	if err != nil {
		return nil, err
	}
	config.Lock.TTL = ttl

	// Generator configuration
	config.Generator.ModelsDir = getEnvOrDefault("GFM_MODELS_DIR", "models")
	config.Generator.MigrationsDir = getEnvOrDefault("GFM_MIGRATIONS_DIR", "migrations")
	config.Generator.DefaultApp = getEnvOrDefault("GFM_DEFAULT_APP", "default")

	// Graph connections: GFM_GRAPHS lists the names, each graph gets
	// its settings from GFM_GRAPH_<NAME>_* variables.
	for _, name := range splitList(os.Getenv("GFM_GRAPHS")) {
		conn, err := loadGraphFromEnv(name)
		if err != nil {
			return nil, err
		}
		config.Graphs[strings.ToLower(name)] = conn
	}

	return config, nil
}

// RequireAPIToken validates the token the HTTP server authenticates
// against. The CLI and the worker run without one.
func (c *Config) RequireAPIToken() error {
	if c.Server.APIToken == "" {
		return fmt.Errorf("GFM_API_TOKEN environment variable is required")
	}
	return nil
}

// loadGraphFromEnv reads the connection settings of one named graph
func loadGraphFromEnv(name string) (*backends.ConnectionConfig, error) {
	prefix := "GFM_GRAPH_" + strings.ToUpper(name) + "_"

	rawURL := os.Getenv(prefix + "URL")
	if rawURL == "" {
		return nil, fmt.Errorf("%sURL environment variable is required for graph %q", prefix, name)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%sURL is not a valid URL: %w", prefix, err)
	}

	conn := &backends.ConnectionConfig{
		Backend: getEnvOrDefault(prefix+"BACKEND", "gremlin"),
		Extra:   make(map[string]string),
	}

	switch parsed.Scheme {
	case "ws", "":
	case "wss":
		conn.TLS = true
	default:
		return nil, fmt.Errorf("%sURL must use the ws or wss scheme, got %q", prefix, parsed.Scheme)
	}
	conn.Host = parsed.Hostname()
	conn.Port = parsed.Port()

	conn.Username = os.Getenv(prefix + "USERNAME")
	conn.Password = os.Getenv(prefix + "PASSWORD")
	conn.TraversalSource = getEnvOrDefault(prefix+"TRAVERSAL_SOURCE", "g")

	insecure, err := getEnvBool(prefix+"TLS_INSECURE", false)
	if err != nil {
		return nil, err
	}
	if insecure {
		conn.Extra["tls_insecure"] = "true"
	}
	if maxConcurrent := os.Getenv(prefix + "MAX_CONCURRENT"); maxConcurrent != "" {
		conn.Extra["max_concurrent"] = maxConcurrent
	}

	return conn, nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses a boolean environment variable
func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return parsed, nil
}

// getEnvInt parses an integer environment variable
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return parsed, nil
}

// getEnvDuration parses a duration environment variable ("5s", "1m")
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as \"5s\", got %q", key, value)
	}
	return parsed, nil
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
