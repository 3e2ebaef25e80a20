package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort     string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost     string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName    string `env:"SERVICE_NAME" envDefault:"policywizard"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"v1"`

	// 会话配置，cookie 中只保存向导会话 ID
	SessionSecret        string `env:"SESSION_SECRET" envDefault:"policywizard-dev-session-secret"`
	SessionCookieName    string `env:"SESSION_COOKIE_NAME" envDefault:"pw_session"`
	SessionMaxAgeSeconds int    `env:"SESSION_MAX_AGE_SECONDS" envDefault:"1800"`
	CSRFEnabled          bool   `env:"CSRF_ENABLED" envDefault:"false"`

	// 向导状态存储：memory 或 redis
	WizardStore       string `env:"WIZARD_STORE" envDefault:"memory"`
	WizardTTLMinutes  int    `env:"WIZARD_TTL_MINUTES" envDefault:"30"`
	SessionLockWaitMs int    `env:"SESSION_LOCK_WAIT_MS" envDefault:"3000"`

	// Redis 配置
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"pw"`

	// RabbitMQ 配置，投保成功后发布事件
	MQEnabled                 bool   `env:"MQ_ENABLED" envDefault:"false"`
	RabbitMQAddr              string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort              string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername          string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword          string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost             string `env:"RABBITMQ_VHOST" envDefault:"/"`
	PolicyExchange            string `env:"POLICY_EXCHANGE" envDefault:"policy.events"`
	PolicySubmittedRoutingKey string `env:"POLICY_SUBMITTED_ROUTING_KEY" envDefault:"policy.submitted"`
	PolicyAuditQueue          string `env:"POLICY_AUDIT_QUEUE" envDefault:"policy.submitted.audit"`

	// JWT 配置
	JWTSecret        string `env:"JWT_SECRET"`
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`
	AuthCookieName   string `env:"AUTH_COOKIE_NAME" envDefault:"jwtToken"`
	AuthCookieDays   int    `env:"AUTH_COOKIE_DAYS" envDefault:"7"`

	// 外部服务：投保接口与登录接口
	PolicyProvider       string `env:"POLICY_PROVIDER" envDefault:"http"` // http, mock
	PolicyEndpoint       string `env:"POLICY_ENDPOINT" envDefault:"http://localhost:3000/api/policy"`
	PolicyTimeoutSeconds int    `env:"POLICY_TIMEOUT_SECONDS" envDefault:"15"`
	BreakerMaxFailures   int    `env:"POLICY_BREAKER_MAX_FAILURES" envDefault:"5"` // 0 关闭熔断
	BreakerResetSeconds  int    `env:"POLICY_BREAKER_RESET_SECONDS" envDefault:"30"`
	IdentityProvider     string `env:"IDENTITY_PROVIDER" envDefault:"http"` // http, mock
	LoginEndpoint        string `env:"LOGIN_ENDPOINT" envDefault:"http://localhost:3000/api/login"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTelEnabled            bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint           string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelInsecure           bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTelSampleRatio        float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`
	OTelMetricIntervalSecs int     `env:"OTEL_METRIC_INTERVAL_SECONDS" envDefault:"15"`

	// 速率限制配置，依赖 Redis
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
	Cfg = cfg
}

// Load 从环境变量解析配置
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 校验启动必需的配置，启动入口负责处理返回的错误
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch c.WizardStore {
	case "memory":
	case "redis":
		if !c.RedisEnabled {
			errs = append(errs, errors.New("WIZARD_STORE=redis requires REDIS_ENABLED=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported WIZARD_STORE: %s", c.WizardStore))
	}

	if c.WizardTTLMinutes <= 0 {
		errs = append(errs, errors.New("WIZARD_TTL_MINUTES must be positive"))
	}

	if c.IsProduction() && strings.HasPrefix(c.SessionSecret, "policywizard-dev") {
		errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
	}

	if c.PolicyProvider == "http" && c.PolicyEndpoint == "" {
		errs = append(errs, errors.New("POLICY_ENDPOINT is required for the http policy provider"))
	}

	if c.AuthCookieDays <= 0 {
		log.Printf("WARN: AUTH_COOKIE_DAYS is not positive, login cookie will expire immediately")
	}

	return errors.Join(errs...)
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
