package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"orderservice/pkg/order/infrastructure/migrations"
)

func migrateUp(c *cli.Context) error {
	conf, err := parseEnv()
	if err != nil {
		return err
	}
	db, err := openDatabase(c.Context, conf)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrations.Up(db, log.WithField("driver", conf.DatabaseDriver))
}

func migrateDown(c *cli.Context) error {
	steps := c.Int("steps")
	if steps <= 0 {
		return errors.Errorf("invalid steps %d", steps)
	}
	conf, err := parseEnv()
	if err != nil {
		return err
	}
	db, err := openDatabase(c.Context, conf)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrations.Down(db, steps, log.WithField("driver", conf.DatabaseDriver))
}
