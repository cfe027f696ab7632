package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Env struct {
	AppAddr string `mapstructure:"APP_ADDR"`
	GinMode string `mapstructure:"GIN_MODE"`
	Env     string `mapstructure:"ENV"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DatabaseDSN string `mapstructure:"DATABASE_DSN"`

	CommissionRate  string        `mapstructure:"COMMISSION_RATE"`
	AutoAcceptDelay time.Duration `mapstructure:"AUTO_ACCEPT_DELAY"`

	SchedulerDriver string `mapstructure:"SCHEDULER_DRIVER"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`

	EventsDriver  string `mapstructure:"EVENTS_DRIVER"`
	EventsChannel string `mapstructure:"EVENTS_CHANNEL"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic    string `mapstructure:"KAFKA_TOPIC"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("GIN_MODE", "")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", "memory")
	v.SetDefault("DATABASE_DSN", "root:@tcp(127.0.0.1:3306)/campus_ride?parseTime=true&loc=UTC&charset=utf8mb4")
	v.SetDefault("COMMISSION_RATE", "0.20")
	v.SetDefault("AUTO_ACCEPT_DELAY", "10s")
	v.SetDefault("SCHEDULER_DRIVER", "timer")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EVENTS_DRIVER", "log")
	v.SetDefault("EVENTS_CHANNEL", "campus_ride_events")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "campus-ride-events")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
}

// LoadEnv reads config.yaml (when present) and the process environment.
func LoadEnv() Env {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("no config file found, using environment variables only")
	}

	env, err := fromViper(v)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := env.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return env
}

func fromViper(v *viper.Viper) (Env, error) {
	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return Env{}, err
	}
	env.StoreDriver = strings.ToLower(strings.TrimSpace(env.StoreDriver))
	env.SchedulerDriver = strings.ToLower(strings.TrimSpace(env.SchedulerDriver))
	env.EventsDriver = strings.ToLower(strings.TrimSpace(env.EventsDriver))
	return env, nil
}

// Rate parses COMMISSION_RATE.
func (e Env) Rate() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(e.CommissionRate))
}

func (e Env) Validate() error {
	rate, err := e.Rate()
	if err != nil {
		return fmt.Errorf("COMMISSION_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("COMMISSION_RATE must be within [0,1], got %s", rate)
	}
	if e.AutoAcceptDelay <= 0 {
		return fmt.Errorf("AUTO_ACCEPT_DELAY must be positive")
	}
	switch e.StoreDriver {
	case "memory", "mysql":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", e.StoreDriver)
	}
	switch e.SchedulerDriver {
	case "timer", "asynq":
	default:
		return fmt.Errorf("unknown SCHEDULER_DRIVER %q", e.SchedulerDriver)
	}
	switch e.EventsDriver {
	case "log", "redis", "kafka":
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", e.EventsDriver)
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas.
func (e Env) Brokers() []string {
	return splitList(e.KafkaBrokers)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (e Env) AllowedOrigins() []string {
	return splitList(e.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
