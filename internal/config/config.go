package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "LISTING"

type Config struct {
	ServiceName string        `mapstructure:"service_name"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	GRPC        GRPCConfig    `mapstructure:"grpc"`
	Mongo       MongoConfig   `mapstructure:"mongo"`
	Redis       RedisConfig   `mapstructure:"redis"`
	Cache       CacheConfig   `mapstructure:"cache"`
	NATS        NATSConfig    `mapstructure:"nats"`
	MinIO       MinIOConfig   `mapstructure:"minio"`
	Photos      PhotosConfig  `mapstructure:"photos"`
	Log         LogConfig     `mapstructure:"log"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Port string `mapstructure:"port"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MinPoolSize    uint64        `mapstructure:"min_pool_size"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

// RedisConfig selects the shared cache. An empty Address falls back to the
// in-process LRU backend.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type CacheConfig struct {
	ListingTTL time.Duration `mapstructure:"listing_ttl"`
	ShardTTL   time.Duration `mapstructure:"shard_ttl"`
	LocalSize  int           `mapstructure:"local_size"`
}

// NATSConfig with an empty URL disables event publishing and the
// invalidation subscriber.
type NATSConfig struct {
	URL               string        `mapstructure:"url"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	InvalidateSubject string        `mapstructure:"invalidate_subject"`
	QueueGroup        string        `mapstructure:"queue_group"`
}

// MinIOConfig with an empty Endpoint disables photo garbage collection.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type PhotosConfig struct {
	Lifetime   time.Duration `mapstructure:"lifetime"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
	PublicURL  string        `mapstructure:"public_url"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputFile string `mapstructure:"output_file"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "classifieds-service")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("grpc.port", "50052")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.username", "")
	v.SetDefault("mongo.password", "")
	v.SetDefault("mongo.database", "classifieds")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("mongo.min_pool_size", 0)
	v.SetDefault("mongo.max_pool_size", 100)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("cache.listing_ttl", "1h")
	v.SetDefault("cache.shard_ttl", "1h")
	v.SetDefault("cache.local_size", 10000)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.connect_timeout", "5s")
	v.SetDefault("nats.invalidate_subject", "listing.invalidate")
	v.SetDefault("nats.queue_group", "")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "minioadmin")
	v.SetDefault("minio.secret_key", "minioadmin")
	v.SetDefault("minio.bucket", "listings-photos")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("photos.lifetime", "1440h")
	v.SetDefault("photos.gc_interval", "24h")
	v.SetDefault("photos.public_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "stdout")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("metrics.enabled", true)
}

// LoadConfig reads defaults, then the YAML file at path (a file or a directory
// holding config.yaml; a missing file is not an error), then LISTING_*
// environment variables, e.g. LISTING_MONGO_URI.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if fi, err := os.Stat(path); path != "" && err == nil {
		if fi.IsDir() {
			v.AddConfigPath(path)
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		} else {
			v.SetConfigFile(path)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("config: mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("config: mongo.database is required")
	}
	if c.HTTP.Port == "" {
		return errors.New("config: http.port is required")
	}
	if c.Cache.LocalSize <= 0 {
		return errors.New("config: cache.local_size must be positive")
	}
	if c.Cache.ListingTTL < 0 || c.Cache.ShardTTL < 0 {
		return errors.New("config: cache ttl must not be negative")
	}
	if c.Photos.GCInterval <= 0 {
		return errors.New("config: photos.gc_interval must be positive")
	}
	return nil
}
