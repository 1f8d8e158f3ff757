package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type ModelConfig struct {
	Dir          string `mapstructure:"dir"`
	ModelFile    string `mapstructure:"model_file"`
	EncodersFile string `mapstructure:"encoders_file"`
}

type ProbeConfig struct {
	Target            string        `mapstructure:"target"`
	Count             int           `mapstructure:"count"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Interval          time.Duration `mapstructure:"interval"`
	BandwidthInterval time.Duration `mapstructure:"bandwidth_interval"`
	SignalTimeout     time.Duration `mapstructure:"signal_timeout"`
	Privileged        bool          `mapstructure:"privileged"`
}

type QueueConfig struct {
	MaxSize int `mapstructure:"max_size"` // 0 = unbounded
}

type DemoConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type RedisConfig struct {
	Addr        string `mapstructure:"addr"` // empty disables history
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	HistorySize int64  `mapstructure:"history_size"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"` // empty disables publishing
	Topic   string   `mapstructure:"topic"`
}

type PublisherConfig struct {
	MaxQueueSize int           `mapstructure:"max_queue_size"`
	SendInterval time.Duration `mapstructure:"send_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Model     ModelConfig     `mapstructure:"model"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Demo      DemoConfig      `mapstructure:"demo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// LoadConfig reads path if it exists, layers SWITCHIFY_* env overrides on top
// and fills every key with a default. An empty path skips the file entirely.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// env overrides: SWITCHIFY_PROBE_TARGET, SWITCHIFY_REDIS_ADDR etc.
	v.SetEnvPrefix("switchify")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.sanitize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	// live measurement alone takes >2s, leave plenty of room
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("model.dir", "model")
	v.SetDefault("model.model_file", "multi_task_model.json")
	v.SetDefault("model.encoders_file", "label_encoders.json")

	v.SetDefault("probe.target", "8.8.8.8")
	v.SetDefault("probe.count", 5)
	v.SetDefault("probe.timeout", "1s")
	v.SetDefault("probe.interval", "20ms")
	v.SetDefault("probe.bandwidth_interval", "1s")
	v.SetDefault("probe.signal_timeout", "2s")
	v.SetDefault("probe.privileged", false)

	v.SetDefault("queue.max_size", 0)
	v.SetDefault("demo.interval", "1s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.history_size", 1000)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "switchify.decisions")

	v.SetDefault("publisher.max_queue_size", 1000)
	v.SetDefault("publisher.send_interval", "5s")
	v.SetDefault("publisher.batch_size", 100)
}

// quick sanity checks
func (c *Config) sanitize() {
	if c.Probe.Count < 1 {
		c.Probe.Count = 5
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = time.Second
	}
	if c.Probe.BandwidthInterval <= 0 {
		c.Probe.BandwidthInterval = time.Second
	}
	if c.Probe.SignalTimeout <= 0 {
		c.Probe.SignalTimeout = 2 * time.Second
	}
	if c.Demo.Interval <= 0 {
		c.Demo.Interval = time.Second
	}
	if c.Queue.MaxSize < 0 {
		c.Queue.MaxSize = 0
	}
	if c.Redis.HistorySize <= 0 {
		c.Redis.HistorySize = 1000
	}
	if c.Publisher.MaxQueueSize <= 0 {
		c.Publisher.MaxQueueSize = 1000
	}
	if c.Publisher.SendInterval <= 0 {
		c.Publisher.SendInterval = 5 * time.Second
	}
	if c.Publisher.BatchSize <= 0 {
		c.Publisher.BatchSize = 100
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
}
