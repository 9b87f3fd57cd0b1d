package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/lottoengine/internal/config"
)

type engineConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	LogFormat       string        `env:"APP_LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Postgres config.PostgresConfig
	Redis    config.RedisConfig
	Gateway  config.GatewayConfig
	Engine   config.EngineConfig
}
