package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Configuration This struct holds config envs and values
// which are used across the gateway. Only this struct must be used
// to hold any configuration values, no direct access to
// env, ini or any other config source should be made
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"whatsapp_gateway"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	// WhatsApp Cloud API. GraphBaseURL is overridable so local setups can
	// point at the simulator instead of graph.facebook.com.
	GraphBaseURL        string        `env:"GRAPH_BASE_URL" default:"https://graph.facebook.com/v19.0"`
	GraphRequestTimeout time.Duration `env:"GRAPH_REQUEST_TIMEOUT" default:"10s"`

	WebhookVerifyToken   string `env:"WEBHOOK_VERIFY_TOKEN"`
	WebhookAppSecret     string `env:"WEBHOOK_APP_SECRET"`
	WebhookAllowUnsigned bool   `env:"WEBHOOK_ALLOW_UNSIGNED" default:"0"`

	WebhookDedupTTL time.Duration `env:"WEBHOOK_DEDUP_TTL" default:"1h"`

	MediaBucket    string `env:"MEDIA_BUCKET"`
	MediaPublicURL string `env:"MEDIA_PUBLIC_URL"`
	AWSRegion      string `env:"AWS_REGION" default:"us-east-1"`

	NotifyWorkers    int           `env:"NOTIFY_WORKERS" default:"8"`
	NotifyBufferSize int           `env:"NOTIFY_BUFFER_SIZE" default:"1024"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" default:"5s"`

	LogLevel []string `env:"LOG_LEVEL"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the singleton, for tests that need ad-hoc configuration.
func Set(c *Config) {
	config = c
}
