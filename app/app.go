package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"sms-console/config"
	"sms-console/pkg/db"
	"sms-console/pkg/metrics"
	amqp "sms-console/pkg/queue"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

var (
	Echo   *echo.Echo
	Logger *slog.Logger
	DB     *db.DB
	Redis  *redis.Client
	Rabbit *amqp.RabbitConnection
)

func Init() {
	Logger = NewLogger(os.Stdout, config.LogLevel)
	slog.SetDefault(Logger)
	initDB()
	initRedis()
	initRabbit()
	Echo = NewEcho()
}

// NewLogger builds the JSON logger used across the service.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func initDB() {
	var err error
	DB, err = db.ConnectDB(db.Config{
		Username:        config.DBUsername,
		Password:        config.DBPassword,
		Host:            config.DBHost,
		Port:            config.DBPort,
		DBName:          config.DBName,
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(config.DBConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		panic(err)
	}
	if err := db.MigrateFromFile(DB, "db/db.sql"); err != nil {
		panic(err)
	}
}

func initRedis() {
	if config.RedisAddr == "" {
		return
	}
	Redis = redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := Redis.Ping(ctx).Err(); err != nil {
		panic(err)
	}
}

func initRabbit() {
	if config.RabbitmqUri == "" {
		Logger.Info("RABBIT_URI not set, history events stay in the outbox")
		return
	}
	var err error
	Rabbit, err = amqp.NewRabbitConnection(config.RabbitmqUri)
	if err != nil {
		panic(err)
	}
	err = Rabbit.SetupQueues(amqp.QueueSetup{
		Exchange: config.HistoryExchange,
		Bindings: []amqp.QueueBinding{{Queue: config.HistoryEventsQueue, RoutingKey: "sms.history.*"}},
	})
	if err != nil {
		panic(err)
	}
}

func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.EchoMiddleware())
	return e
}

func Close() {
	if Rabbit != nil {
		_ = Rabbit.Close()
	}
	if Redis != nil {
		_ = Redis.Close()
	}
	if DB != nil {
		_ = DB.Close()
	}
}
