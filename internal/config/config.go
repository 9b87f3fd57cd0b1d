package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig is optional: an empty Addr disables the result cache and makes the
// notifier fall back to logging.
type RedisConfig struct {
	Addr         string `env:"REDIS_ADDR" envDefault:""`
	Password     string `env:"REDIS_PASSWORD" envDefault:""`
	DB           int    `env:"REDIS_DB" envDefault:"0"`
	EventChannel string `env:"REDIS_EVENT_CHANNEL" envDefault:"lotto:events"`
}

type GatewayConfig struct {
	// BaseURL of the payment gateway adapter. "memory" runs the in-process gateway
	// that confirms every charge (dev only).
	BaseURL string        `env:"GATEWAY_URL"`
	APIKey  string        `env:"GATEWAY_API_KEY" envDefault:""`
	Timeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"5s"`
}

type EngineConfig struct {
	SchedulerTick     time.Duration `env:"SCHEDULER_TICK" envDefault:"10s"`
	PurchaseAttempts  int           `env:"PURCHASE_MAX_ATTEMPTS" envDefault:"5"`
	SeedKey           string        `env:"SEED_KEY"`
	FirstPrizeShare   string        `env:"FIRST_PRIZE_SHARE" envDefault:"0.50"`
	ConsolationShare  string        `env:"CONSOLATION_SHARE" envDefault:"0.10"`
	CalendarCadences  string        `env:"CALENDAR_CADENCES" envDefault:"DAILY,WEEKLY,MONTHLY"`
	CalendarPrice     int64         `env:"CALENDAR_TICKET_PRICE" envDefault:"100"`
	NumberDigits      int           `env:"TICKET_NUMBER_DIGITS" envDefault:"6"`
	MatchPositions    int           `env:"CONSOLATION_MATCH_POSITIONS" envDefault:"5"`
	NotifyQueueSize   int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	ResultCacheTTL    time.Duration `env:"RESULT_CACHE_TTL" envDefault:"10m"`
	RoundsPerTickScan int           `env:"SCHEDULER_BATCH" envDefault:"100"`
}
