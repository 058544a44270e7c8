package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8000,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	backend = configVar[string]{
		envKey:       "SERVER_BACKEND",
		flagKey:      "backend",
		defaultValue: app.BackendLocal,
		usage:        "Room backend: local or redis",
	}
	excludeSender = configVar[bool]{
		envKey:       "SERVER_EXCLUDE_SENDER",
		flagKey:      "exclude-sender",
		defaultValue: false,
		usage:        "Do not echo events back to their sender",
	}
	strictRooms = configVar[bool]{
		envKey:       "SERVER_STRICT_ROOMS",
		flagKey:      "strict-rooms",
		defaultValue: false,
		usage:        "Only accept connections to provisioned rooms",
	}
	sendBuffer = configVar[int]{
		envKey:       "SERVER_SEND_BUFFER",
		flagKey:      "send-buffer",
		defaultValue: 256,
		usage:        "Outbound frames buffered per connection",
	}
	wsReadLimit = configVar[int64]{
		envKey:       "SERVER_WS_READ_LIMIT",
		flagKey:      "ws-read-limit",
		defaultValue: 4096,
		usage:        "Maximum inbound frame size in bytes",
	}
	wsPingPeriod = configVar[time.Duration]{
		envKey:       "SERVER_WS_PING_PERIOD",
		flagKey:      "ws-ping-period",
		defaultValue: 54 * time.Second,
		usage:        "Interval between keepalive pings",
	}
	wsPongWait = configVar[time.Duration]{
		envKey:       "SERVER_WS_PONG_WAIT",
		flagKey:      "ws-pong-wait",
		defaultValue: 60 * time.Second,
		usage:        "Time a connection may stay silent before it is dropped",
	}
	wsWriteWait = configVar[time.Duration]{
		envKey:       "SERVER_WS_WRITE_WAIT",
		flagKey:      "ws-write-wait",
		defaultValue: 10 * time.Second,
		usage:        "Deadline for a single frame write",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	// a missing .env is fine, the environment and flags still apply
	_ = godotenv.Load()

	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(backend.flagKey, backend.defaultValue, backend.usage)
	pflag.Bool(excludeSender.flagKey, excludeSender.defaultValue, excludeSender.usage)
	pflag.Bool(strictRooms.flagKey, strictRooms.defaultValue, strictRooms.usage)
	pflag.Int(sendBuffer.flagKey, sendBuffer.defaultValue, sendBuffer.usage)
	pflag.Int64(wsReadLimit.flagKey, wsReadLimit.defaultValue, wsReadLimit.usage)
	pflag.Duration(wsPingPeriod.flagKey, wsPingPeriod.defaultValue, wsPingPeriod.usage)
	pflag.Duration(wsPongWait.flagKey, wsPongWait.defaultValue, wsPongWait.usage)
	pflag.Duration(wsWriteWait.flagKey, wsWriteWait.defaultValue, wsWriteWait.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(port)
	bind(host)
	bind(logLevel)
	bind(backend)
	bind(excludeSender)
	bind(strictRooms)
	bind(sendBuffer)
	bind(wsReadLimit)
	bind(wsPingPeriod)
	bind(wsPongWait)
	bind(wsWriteWait)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)

	return &app.AppConfig{
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		Backend:       viper.GetString(backend.flagKey),
		ExcludeSender: viper.GetBool(excludeSender.flagKey),
		StrictRooms:   viper.GetBool(strictRooms.flagKey),
		SendBuffer:    viper.GetInt(sendBuffer.flagKey),
		WSReadLimit:   viper.GetInt64(wsReadLimit.flagKey),
		WSPingPeriod:  viper.GetDuration(wsPingPeriod.flagKey),
		WSPongWait:    viper.GetDuration(wsPongWait.flagKey),
		WSWriteWait:   viper.GetDuration(wsWriteWait.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
