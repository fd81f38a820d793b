// Package config holds the ingest process configuration, parsed from flags
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"solana-event-log/internal/ingestion"
	"solana-event-log/internal/stream"
)

// Sink kinds.
const (
	SinkPostgres   = "postgres"
	SinkClickhouse = "clickhouse"
	SinkMemory     = "memory"
)

// Config is the ingest process configuration.
type Config struct {
	WSEndpoint     string   `long:"ws-endpoint" env:"HELIUS_WEBSOCKETS_URL" description:"transactionSubscribe WebSocket endpoint"`
	AccountInclude []string `long:"account-include" env:"ACCOUNT_INCLUDE" env-delim:"," description:"account to watch (repeatable)"`
	Commitment     string   `long:"commitment" env:"COMMITMENT" description:"subscription commitment" default:"confirmed" choice:"processed" choice:"confirmed" choice:"finalized"`

	Sink          string `long:"sink" env:"SINK" description:"event sink" default:"postgres" choice:"postgres" choice:"clickhouse" choice:"memory"`
	PostgresDSN   string `long:"postgres-dsn" env:"POSTGRES_DSN" description:"PostgreSQL DSN, overrides the discrete --pg-* options"`
	PGHost        string `long:"pg-host" env:"PGHOSTNAME" description:"PostgreSQL host"`
	PGPort        int    `long:"pg-port" env:"PGPORT" description:"PostgreSQL port" default:"5432"`
	PGUser        string `long:"pg-user" env:"PGUSERNAME" description:"PostgreSQL user"`
	PGPassword    string `long:"pg-password" env:"PGPASSWORD" description:"PostgreSQL password"`
	PGDatabase    string `long:"pg-database" env:"PGDATABASE" description:"PostgreSQL database"`
	PGSSLMode     string `long:"pg-sslmode" env:"PGSSLMODE" description:"PostgreSQL sslmode" default:"require"`
	PGMaxConns    int32  `long:"pg-max-conns" env:"PG_MAX_CONNS" description:"PostgreSQL pool size" default:"8"`
	ClickhouseDSN string `long:"clickhouse-dsn" env:"CLICKHOUSE_DSN" description:"ClickHouse DSN"`
	Migrate       bool   `long:"migrate" env:"MIGRATE" description:"apply embedded migrations at startup"`

	MinAmount  float64  `long:"min-amount" env:"MIN_AMOUNT" description:"minimum display amount recorded by amount-gated projectors" default:"999"`
	Projectors []string `long:"projector" env:"PROJECTORS" env-delim:"," description:"enabled projector program.instruction, or 'all' (repeatable)"`

	MaxReconnectAttempts int           `long:"max-reconnect-attempts" env:"MAX_RECONNECT_ATTEMPTS" description:"consecutive failed connections before exiting" default:"5"`
	ReconnectDelay       time.Duration `long:"reconnect-delay" env:"RECONNECT_DELAY" description:"initial reconnect backoff" default:"1s"`
	MaxReconnectDelay    time.Duration `long:"max-reconnect-delay" env:"MAX_RECONNECT_DELAY" description:"reconnect backoff ceiling" default:"30s"`
	ConnectTimeout       time.Duration `long:"connect-timeout" env:"CONNECT_TIMEOUT" description:"dial timeout" default:"10s"`
	SubscribeTimeout     time.Duration `long:"subscribe-timeout" env:"SUBSCRIBE_TIMEOUT" description:"subscribe write timeout" default:"10s"`
	ReadTimeout          time.Duration `long:"read-timeout" env:"READ_TIMEOUT" description:"longest silence tolerated on a connection" default:"60s"`
	PingInterval         time.Duration `long:"ping-interval" env:"PING_INTERVAL" description:"WebSocket ping interval" default:"30s"`
	PersistTimeout       time.Duration `long:"persist-timeout" env:"PERSIST_TIMEOUT" description:"timeout for a single sink write" default:"10s"`
	ShutdownTimeout      time.Duration `long:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" description:"time allowed to drain in-flight writes" default:"15s"`

	Workers   int `long:"workers" env:"WORKERS" description:"persistence workers" default:"4"`
	QueueSize int `long:"queue-size" env:"QUEUE_SIZE" description:"persistence queue capacity" default:"256"`
	WriteRPS  int `long:"write-rps" env:"WRITE_RPS" description:"max sink writes per second, 0 for unlimited" default:"0"`

	MetricsAddr string `long:"metrics-addr" env:"METRICS_ADDR" description:"Prometheus metrics address, empty to disable" default:":9090"`
	LogLevel    string `long:"log-level" env:"LOG_LEVEL" description:"log level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	LogFormat   string `long:"log-format" env:"LOG_FORMAT" description:"log encoding" default:"json" choice:"json" choice:"console"`
}

// Parse parses args (without the program name) into a Config and validates it.
// A help request is returned as a *flags.Error of type flags.ErrHelp.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	if _, err := flags.ParseArgs(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsHelp reports whether err is a help request from Parse.
func IsHelp(err error) bool {
	var ferr *flags.Error
	return errors.As(err, &ferr) && ferr.Type == flags.ErrHelp
}

// Validate checks required options and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.WSEndpoint == "" {
		errs = append(errs, errors.New("--ws-endpoint is required"))
	} else if u, err := url.Parse(c.WSEndpoint); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs = append(errs, fmt.Errorf("--ws-endpoint %q must be a ws:// or wss:// URL", c.WSEndpoint))
	}
	if len(c.Accounts()) == 0 {
		errs = append(errs, errors.New("at least one --account-include is required"))
	}

	switch c.Sink {
	case SinkPostgres:
		if c.PostgresDSN == "" && (c.PGHost == "" || c.PGUser == "" || c.PGDatabase == "") {
			errs = append(errs, errors.New("postgres sink needs --postgres-dsn or --pg-host, --pg-user and --pg-database"))
		}
		if c.PGMaxConns <= 0 {
			errs = append(errs, errors.New("--pg-max-conns must be positive"))
		}
	case SinkClickhouse:
		if c.ClickhouseDSN == "" {
			errs = append(errs, errors.New("clickhouse sink needs --clickhouse-dsn"))
		}
	case SinkMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown --sink %q", c.Sink))
	}

	if c.MinAmount < 0 {
		errs = append(errs, errors.New("--min-amount must not be negative"))
	}
	for _, p := range c.Projectors {
		if p == ingestion.AllProjectors {
			continue
		}
		if _, err := ingestion.ParseProjectorKey(p); err != nil {
			errs = append(errs, fmt.Errorf("--projector: %w", err))
		}
	}

	if c.MaxReconnectAttempts <= 0 {
		errs = append(errs, errors.New("--max-reconnect-attempts must be positive"))
	}
	for _, d := range []struct {
		flag  string
		value time.Duration
	}{
		{"--connect-timeout", c.ConnectTimeout},
		{"--subscribe-timeout", c.SubscribeTimeout},
		{"--read-timeout", c.ReadTimeout},
		{"--ping-interval", c.PingInterval},
		{"--persist-timeout", c.PersistTimeout},
		{"--shutdown-timeout", c.ShutdownTimeout},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.flag))
		}
	}
	if c.ReconnectDelay < 0 {
		errs = append(errs, errors.New("--reconnect-delay must not be negative"))
	}
	if c.PingInterval > 0 && c.ReadTimeout > 0 && c.PingInterval >= c.ReadTimeout {
		errs = append(errs, errors.New("--ping-interval must be shorter than --read-timeout"))
	}

	if c.Workers <= 0 {
		errs = append(errs, errors.New("--workers must be positive"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("--queue-size must be positive"))
	}
	if c.WriteRPS < 0 {
		errs = append(errs, errors.New("--write-rps must not be negative"))
	}

	return errors.Join(errs...)
}

// Accounts returns the trimmed, de-duplicated account filter in input order.
func (c *Config) Accounts() []string {
	seen := make(map[string]struct{}, len(c.AccountInclude))
	out := make([]string, 0, len(c.AccountInclude))
	for _, a := range c.AccountInclude {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// EnabledProjectors returns the configured projector set, or the default one.
func (c *Config) EnabledProjectors() []string {
	if len(c.Projectors) == 0 {
		return ingestion.DefaultProjectors
	}
	return c.Projectors
}

// PostgresConnString returns --postgres-dsn when set, otherwise a URL built
// from the discrete --pg-* options.
func (c *Config) PostgresConnString() string {
	if c.PostgresDSN != "" {
		return c.PostgresDSN
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   c.PGHost + ":" + strconv.Itoa(c.PGPort),
		Path:   "/" + c.PGDatabase,
	}
	if c.PGPassword != "" {
		u.User = url.UserPassword(c.PGUser, c.PGPassword)
	} else {
		u.User = url.User(c.PGUser)
	}
	if c.PGSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.PGSSLMode}}.Encode()
	}
	return u.String()
}

// StreamConfig returns the supervisor configuration.
func (c *Config) StreamConfig() stream.Config {
	return stream.Config{
		MaxAttempts:       c.MaxReconnectAttempts,
		ReconnectDelay:    c.ReconnectDelay,
		MaxReconnectDelay: c.MaxReconnectDelay,
		ConnectTimeout:    c.ConnectTimeout,
		SubscribeTimeout:  c.SubscribeTimeout,
		ShutdownTimeout:   c.ShutdownTimeout,
	}
}

// DispatcherConfig returns the persistence pool configuration.
func (c *Config) DispatcherConfig() ingestion.DispatcherConfig {
	return ingestion.DispatcherConfig{
		Workers:        c.Workers,
		QueueSize:      c.QueueSize,
		PersistTimeout: c.PersistTimeout,
		WriteRPS:       c.WriteRPS,
	}
}
