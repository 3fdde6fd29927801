package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/crm-backend/internal/logger"
)

// DefaultPath is used when CRM_CONFIG is unset.
const DefaultPath = "crm.yml"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	AMQP      AMQPConfig       `yaml:"amqp"`
	SES       SESConfig        `yaml:"ses"`
	Queue     QueueConfig      `yaml:"queue"`
	Delivery  DeliveryConfig   `yaml:"delivery"`
	Campaigns CampaignsConfig  `yaml:"campaigns"`
	Schedules []ScheduleConfig `yaml:"schedules"`
	Log       logger.Config    `yaml:"log"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	SenderEmail string `yaml:"sender_email"`
	SenderPhone string `yaml:"sender_phone"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN prefers an explicit URL over the individual fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig enables the content cache when Addr is set.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	ContentTTL time.Duration `yaml:"content_ttl"`
}

type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Full-queue policies for the per-campaign message queue.
const (
	FullPolicyBlock = "block"
	FullPolicyDrop  = "drop"
)

// Enqueue policies at the delivery queue boundary.
const (
	EnqueueBlock    = "block"
	EnqueueWait     = "wait"
	EnqueueFailFast = "fail_fast"
)

type QueueConfig struct {
	MessageCapacity  int           `yaml:"message_capacity"`
	FullPolicy       string        `yaml:"full_policy"`
	DeliveryCapacity int           `yaml:"delivery_capacity"`
	EnqueuePolicy    string        `yaml:"enqueue_policy"`
	EnqueueTimeout   time.Duration `yaml:"enqueue_timeout"`
}

// Sink names
const (
	SinkLog  = "log"
	SinkAMQP = "amqp"
	SinkSES  = "ses"
)

type DeliveryConfig struct {
	Sink          string        `yaml:"sink"`
	Latency       time.Duration `yaml:"latency"`
	RatePerSecond int           `yaml:"rate_per_second"`
	MaxRetries    int           `yaml:"max_retries"`
	RecordLedger  bool          `yaml:"record_ledger"`
}

type CampaignsConfig struct {
	Subjects     map[string]string `yaml:"subjects"`
	BodyTemplate string            `yaml:"body_template"`
}

type ScheduleConfig struct {
	Name         string  `yaml:"name"`
	Spec         string  `yaml:"spec"`
	Kind         string  `yaml:"kind"`
	IntervalDays uint32  `yaml:"interval_days"`
	ContentIDs   []int64 `yaml:"content_ids"`
}

// Load reads .env (optional), the YAML file at path (optional), then
// environment overrides, and fills defaults.
func Load(path string) (*Config, error) {
	// Missing .env is fine; OS environment is used instead.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CRM_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.AMQP.URL, "AMQP_URL")
	setString(&c.SES.Region, "AWS_REGION")
	setString(&c.SES.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.SES.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Server.SenderEmail, "SENDER_EMAIL")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.ContentTTL == 0 {
		c.Redis.ContentTTL = 10 * time.Minute
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "notification_sends"
	}
	if c.Queue.MessageCapacity <= 0 {
		c.Queue.MessageCapacity = 1024
	}
	if c.Queue.FullPolicy == "" {
		c.Queue.FullPolicy = FullPolicyBlock
	}
	if c.Queue.DeliveryCapacity <= 0 {
		c.Queue.DeliveryCapacity = c.Queue.MessageCapacity * 100
	}
	if c.Queue.EnqueuePolicy == "" {
		c.Queue.EnqueuePolicy = EnqueueWait
	}
	if c.Queue.EnqueueTimeout == 0 {
		c.Queue.EnqueueTimeout = 5 * time.Second
	}
	if c.Delivery.Sink == "" {
		c.Delivery.Sink = SinkLog
	}
	if c.Delivery.Latency == 0 {
		c.Delivery.Latency = 300 * time.Millisecond
	}
	if c.Delivery.MaxRetries == 0 {
		c.Delivery.MaxRetries = 3
	}
}

// Validate rejects unknown policy names and inconsistent sink settings.
func (c *Config) Validate() error {
	switch c.Queue.FullPolicy {
	case FullPolicyBlock, FullPolicyDrop:
	default:
		return fmt.Errorf("queue.full_policy: unknown policy %q", c.Queue.FullPolicy)
	}
	switch c.Queue.EnqueuePolicy {
	case EnqueueBlock, EnqueueWait, EnqueueFailFast:
	default:
		return fmt.Errorf("queue.enqueue_policy: unknown policy %q", c.Queue.EnqueuePolicy)
	}
	switch c.Delivery.Sink {
	case SinkLog:
	case SinkAMQP:
		if c.AMQP.URL == "" {
			return errors.New("delivery.sink amqp requires amqp.url")
		}
	case SinkSES:
		if c.SES.Region == "" {
			return errors.New("delivery.sink ses requires ses.region")
		}
	default:
		return fmt.Errorf("delivery.sink: unknown sink %q", c.Delivery.Sink)
	}
	if c.Server.SenderEmail == "" {
		return errors.New("server.sender_email is required")
	}
	for _, s := range c.Schedules {
		switch s.Kind {
		case "welcome", "recall", "remind":
		default:
			return fmt.Errorf("schedule %q: unknown kind %q", s.Name, s.Kind)
		}
	}
	return nil
}
