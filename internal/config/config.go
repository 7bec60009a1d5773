package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Presign  PresignConfig  `mapstructure:"presign"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig points at the MongoDB holding chat history.
// An empty URI disables the chat endpoints.
type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// S3Config configures the object store client.
type S3Config struct {
	Driver            string        `mapstructure:"driver"` // "s3" or "memory"
	Endpoint          string        `mapstructure:"endpoint"`
	Region            string        `mapstructure:"region"`
	AccessKeyID       string        `mapstructure:"access_key_id"`
	SecretAccessKey   string        `mapstructure:"secret_access_key"`
	UsePathStyle      bool          `mapstructure:"use_path_style"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	AutoCreateBuckets bool          `mapstructure:"auto_create_buckets"`
}

// StorageConfig holds the file manager limits and naming mode.
type StorageConfig struct {
	LegacyNaming   bool          `mapstructure:"legacy_naming"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	MaxBatchUpload int           `mapstructure:"max_batch_upload"`
	MaxBatchDelete int           `mapstructure:"max_batch_delete"`
	DownloadURLTTL time.Duration `mapstructure:"download_url_ttl"`
}

// PresignConfig configures the URL refresher.
type PresignConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	CustomHosts []string      `mapstructure:"custom_hosts"` // path-style endpoints besides amazonaws.com
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No file; defaults and env vars are enough.
		err = nil
	} else if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "polysynergy")

	v.SetDefault("s3.driver", "s3")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "eu-central-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("s3.operation_timeout", "30s")
	v.SetDefault("s3.max_attempts", 3)
	v.SetDefault("s3.max_backoff", "5s")
	v.SetDefault("s3.auto_create_buckets", true)

	v.SetDefault("storage.legacy_naming", false)
	v.SetDefault("storage.max_upload_bytes", 100*1024*1024)
	v.SetDefault("storage.max_batch_upload", 20)
	v.SetDefault("storage.max_batch_delete", 100)
	v.SetDefault("storage.download_url_ttl", "24h")

	v.SetDefault("presign.ttl", "1h")
	v.SetDefault("presign.custom_hosts", []string{})

	v.SetDefault("jwt.secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
