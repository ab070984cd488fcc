package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
)

const envPrefix = "ICONFORGE"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Transform TransformConfig `mapstructure:"transform"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	Mode           string        `mapstructure:"mode"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	FlashSecure    bool          `mapstructure:"flash_secure"`
}

// AssetsConfig points at the bundled mockup backgrounds, frames and fonts.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

type TransformConfig struct {
	MaxPixels int `mapstructure:"max_pixels"`
}

type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type QueueConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Name          string `mapstructure:"name"`
	Enabled       bool   `mapstructure:"enabled"`
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	MaxActiveJobs int    `mapstructure:"max_active_jobs"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
}

type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Capacity      int           `mapstructure:"capacity"`
	Window        time.Duration `mapstructure:"window"`
	SubjectHeader string        `mapstructure:"subject_header"`
}

type WebhookConfig struct {
	SigningSecret  string        `mapstructure:"signing_secret"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ArchiveConfig struct {
	Password string `mapstructure:"password"`
}

// Load reads defaults, an optional config/config.yaml and ICONFORGE_*
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.mode", "release")
	v.SetDefault("http.max_upload_bytes", int64(32<<20))
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.flash_secure", false)

	v.SetDefault("assets.dir", "./static")
	v.SetDefault("transform.max_pixels", 50_000_000)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./.iconforge-data")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "minioadmin")
	v.SetDefault("storage.secret_key", "minioadmin")
	v.SetDefault("storage.bucket", "iconforge-assets")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("database.dsn", "")

	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.name", "default")
	v.SetDefault("queue.enabled", false)

	v.SetDefault("worker.concurrency", max(2, runtime.NumCPU()))
	v.SetDefault("worker.max_active_jobs", max(1, runtime.NumCPU()/2))
	v.SetDefault("worker.metrics_addr", ":9091")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.capacity", 30)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.subject_header", "X-Client-ID")

	v.SetDefault("webhook.signing_secret", "")
	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.max_attempts", 4)
	v.SetDefault("webhook.initial_backoff", time.Second)
	v.SetDefault("webhook.max_backoff", 30*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "iconforge.assets")

	v.SetDefault("telemetry.service_name", "iconforge")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("archive.password", "")
}

// splitList flattens comma separated entries so both YAML lists and a single
// "a:9092,b:9092" env value work.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
