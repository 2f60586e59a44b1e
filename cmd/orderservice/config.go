package main

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const appID = "order"

const (
	backendMemory = "memory"
	backendSQL    = "sql"
)

type config struct {
	Backend        string        `envconfig:"backend" default:"sql"`
	DatabaseDriver string        `envconfig:"database_driver" default:"mysql"`
	DatabaseDSN    string        `envconfig:"database_dsn" default:"order:1234@tcp(localhost:3306)/order"`
	DatabaseWait   time.Duration `envconfig:"database_wait" default:"30s"`

	AllowUnknownProducts bool `envconfig:"allow_unknown_products" default:"false"`

	HTTPAddress string `envconfig:"http_address" default:":8080"`
	GRPCAddress string `envconfig:"grpc_address" default:":8081"`

	AMQPURL      string        `envconfig:"amqp_url"`
	AMQPExchange string        `envconfig:"amqp_exchange" default:"order.events"`
	AMQPWait     time.Duration `envconfig:"amqp_wait" default:"30s"`

	RedisAddress   string        `envconfig:"redis_address"`
	IdempotencyTTL time.Duration `envconfig:"idempotency_ttl" default:"24h"`

	OutboxInterval  time.Duration `envconfig:"outbox_interval" default:"1s"`
	OutboxBatchSize int           `envconfig:"outbox_batch_size" default:"100"`

	ShutdownTimeout time.Duration `envconfig:"shutdown_timeout" default:"15s"`
}

func parseEnv() (*config, error) {
	c := new(config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	if c.Backend != backendMemory && c.Backend != backendSQL {
		return nil, errors.Errorf("unknown backend %q", c.Backend)
	}
	return c, nil
}

// dsn returns the data source name for sqlx.Open. The MySQL driver needs
// parseTime to scan DATETIME columns into time.Time.
func (c *config) dsn() string {
	if c.DatabaseDriver != "mysql" || strings.Contains(c.DatabaseDSN, "parseTime=") {
		return c.DatabaseDSN
	}
	if strings.Contains(c.DatabaseDSN, "?") {
		return c.DatabaseDSN + "&parseTime=true"
	}
	return c.DatabaseDSN + "?parseTime=true"
}
