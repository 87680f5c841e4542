package config

import (
	"sms-console/pkg/env"
	"strconv"
)

var (
	AppName       string
	AppListenAddr string
	LogLevel      string
	AdminAPIKey   string

	DBUsername string
	DBPassword string
	DBHost     string
	DBPort     int
	DBName     string

	GatewayBaseURL         string
	GatewayTimeoutSec      int
	GatewayBreakerFailures int
	GatewayBreakerOpenSec  int
	SmsCountryCode         string
	CredentialsCacheTTLSec int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitmqUri        string
	HistoryExchange    string
	HistoryEventsQueue string

	OtelEndpoint string

	// Capacity knobs
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeSec int
)

const DefaultGatewayBaseURL = "https://sms.hubtel.com/v1/messages/send"

func Init() {
	AppName = env.Default("APP_NAME", "sms-console")
	AppListenAddr = env.RequiredNotEmpty("LISTEN_ADDR")
	LogLevel = env.Default("LOG_LEVEL", "info")
	AdminAPIKey = env.Default("ADMIN_API_KEY", "")

	DBUsername = env.RequiredNotEmpty("DB_USER_NAME")
	DBPassword = env.RequiredNotEmpty("DB_PASSWORD")
	DBHost = env.RequiredNotEmpty("DB_HOST")
	port, err := strconv.Atoi(env.RequiredNotEmpty("DB_PORT"))
	if err != nil {
		panic("invalid DB_PORT: " + err.Error())
	}
	DBPort = port
	DBName = env.RequiredNotEmpty("DB_NAME")

	GatewayBaseURL = env.Default("GATEWAY_BASE_URL", DefaultGatewayBaseURL)
	GatewayTimeoutSec = env.DefaultInt("GATEWAY_TIMEOUT_SEC", 15)
	GatewayBreakerFailures = env.DefaultInt("GATEWAY_BREAKER_FAILURES", 0)
	GatewayBreakerOpenSec = env.DefaultInt("GATEWAY_BREAKER_OPEN_SEC", 30)
	SmsCountryCode = env.Default("SMS_COUNTRY_CODE", "233")
	CredentialsCacheTTLSec = env.DefaultInt("CREDENTIALS_CACHE_TTL_SEC", 60)

	RedisAddr = env.Default("REDIS_ADDR", "")
	RedisPassword = env.Default("REDIS_PASSWORD", "")
	RedisDB = env.DefaultInt("REDIS_DB", 0)

	RabbitmqUri = env.Default("RABBIT_URI", "")
	HistoryExchange = env.Default("RABBIT_HISTORY_EXCHANGE", "sms_history")
	HistoryEventsQueue = env.Default("HISTORY_EVENTS_QUEUE", "sms_history_events")

	OtelEndpoint = env.Default("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	DBMaxOpenConns = env.DefaultInt("DB_MAX_OPEN_CONNS", 50)
	DBMaxIdleConns = env.DefaultInt("DB_MAX_IDLE_CONNS", 25)
	DBConnMaxLifetimeSec = env.DefaultInt("DB_CONN_MAX_LIFETIME_SEC", 300)
}
