package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "EDUFUND"

type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
}

type MatchingConfig struct {
	MinScore       int `mapstructure:"min_score"`
	ScanLimit      int `mapstructure:"scan_limit"`
	AutoMatchLimit int `mapstructure:"auto_match_limit"`
}

type SettlementConfig struct {
	MaxRetries  int    `mapstructure:"max_retries"`
	PaymentMode string `mapstructure:"payment_mode"`
}

type KafkaTopics struct {
	LoansCreated    string `mapstructure:"loans_created"`
	OffersCreated   string `mapstructure:"offers_created"`
	MatchesExecuted string `mapstructure:"matches_executed"`
}

type KafkaConfig struct {
	Enabled       bool        `mapstructure:"enabled"`
	Brokers       []string    `mapstructure:"brokers"`
	ConsumerGroup string      `mapstructure:"consumer_group"`
	Topics        KafkaTopics `mapstructure:"topics"`
}

type Config struct {
	AppPort  string `mapstructure:"app_port"`
	AppEnv   string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	DB    DBConfig    `mapstructure:"db"`
	Redis RedisConfig `mapstructure:"redis"`

	IdempTTLSecs  int           `mapstructure:"idempotency_ttl_seconds"`
	ScoreCacheTTL time.Duration `mapstructure:"score_cache_ttl"`
	AuditInterval time.Duration `mapstructure:"audit_interval"`

	Matching   MatchingConfig   `mapstructure:"matching"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.host", "mysql")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.name", "edufund")
	v.SetDefault("db.user", "edufund")
	v.SetDefault("db.password", "edufund")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("idempotency_ttl_seconds", 300)
	v.SetDefault("score_cache_ttl", "5m")
	v.SetDefault("audit_interval", "0s")

	v.SetDefault("matching.min_score", 600)
	v.SetDefault("matching.scan_limit", 500)
	v.SetDefault("matching.auto_match_limit", 5)

	v.SetDefault("settlement.max_retries", 3)
	v.SetDefault("settlement.payment_mode", "confirm")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "edufund-automation")
	v.SetDefault("kafka.topics.loans_created", "loans.created")
	v.SetDefault("kafka.topics.offers_created", "offers.created")
	v.SetDefault("kafka.topics.matches_executed", "matches.executed")
}

// Load reads defaults, then the optional file named by EDUFUND_CONFIG, then
// EDUFUND_* environment variables (EDUFUND_DB_HOST overrides db.host).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// AutomaticEnv does not split lists
	if raw := os.Getenv(envPrefix + "_KAFKA_BROKERS"); raw != "" {
		c.Kafka.Brokers = splitCSV(raw)
	}
	return &c, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Port == "" || c.DB.Name == "" || c.DB.User == "" {
		return errors.New("missing DB config (EDUFUND_DB_HOST/PORT/NAME/USER)")
	}
	if c.DB.Driver != "mysql" && c.DB.Driver != "postgres" {
		return fmt.Errorf("unsupported DB driver %q", c.DB.Driver)
	}
	if _, err := net.LookupPort("tcp", c.DB.Port); err != nil {
		return fmt.Errorf("invalid EDUFUND_DB_PORT %q: %w", c.DB.Port, err)
	}
	if c.AppPort == "" {
		return errors.New("missing EDUFUND_APP_PORT")
	}
	if c.Settlement.MaxRetries < 1 {
		return errors.New("settlement.max_retries must be at least 1")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka enabled without brokers")
	}
	return nil
}

func (c *Config) dbAddr() string { return net.JoinHostPort(c.DB.Host, c.DB.Port) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.DB.User, c.DB.Password, c.dbAddr(), c.DB.Name)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DB.Driver == "postgres" {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}
