package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppCfg struct {
	Name string
	Env  string
	Host string
	Port int
}

type RootCfg struct {
	ApiBearerToken string
}

type LogCfg struct {
	Level string
}

type DBCfg struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	AutoMigrate bool
}

type RedisCfg struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type MQCfg struct {
	Enabled  bool
	URL      string
	Exchange string
	Queue    string
}

// CacheCfg controls the read-through cache in front of both assignment stores.
type CacheCfg struct {
	Namespace           string
	ListTTLSec          int
	ProjectExistsTTLSec int
}

type IdentifierCfg struct {
	SubjectPrefixes []string
}

type TelemetryCfg struct {
	Enabled      bool
	OtlpEndpoint string
	SampleRatio  float64
}

type Config struct {
	App        AppCfg
	Root       RootCfg
	Log        LogCfg
	Database   DBCfg
	Redis      RedisCfg
	RabbitMQ   MQCfg
	Cache      CacheCfg
	Identifier IdentifierCfg
	Telemetry  TelemetryCfg
}

func Load() (*Config, error) {
	// a local .env is optional; real environment variables always win
	_ = godotenv.Load()

	base := viper.New()
	base.SetConfigName("config")
	base.SetConfigType("yaml")
	base.AddConfigPath("./configs")
	base.AddConfigPath(".")
	base.AutomaticEnv()
	base.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	base.SetEnvPrefix("APP") // e.g. APP_APP_PORT -> app.port

	setDefaults(base)

	if err := base.ReadInConfig(); err == nil {
		// expand ${ENV} once before parsing
		path := base.ConfigFileUsed()
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(raw))

		v := viper.New()
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, err
		}
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.SetEnvPrefix("APP")
		setDefaults(v)

		cfg := new(Config)
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// no config file: env + defaults only
	cfg := new(Config)
	if err := base.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "threatlens")
	v.SetDefault("app.env", "debug")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("root.apiBearerToken", "threatlens")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.dsn", "host=localhost user=threatlens password=threatlens dbname=threatlens port=5432 sslmode=disable")
	v.SetDefault("database.maxOpen", 20)
	v.SetDefault("database.maxIdle", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.exchange", "threatlens")
	v.SetDefault("rabbitmq.queue", "threat_model_assignments")
	v.SetDefault("cache.namespace", "cache:")
	v.SetDefault("cache.listTTLSec", 300)
	v.SetDefault("cache.projectExistsTTLSec", 3600)
	v.SetDefault("identifier.subjectPrefixes", []string{"subj-", "subject:"})
	v.SetDefault("telemetry.sampleRatio", 1.0)
}
