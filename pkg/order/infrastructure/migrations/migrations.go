package migrations

import (
	"embed"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DriverMySQL = "mysql"
	DriverPgx   = "pgx"
)

//go:embed mysql/*.sql postgres/*.sql
var files embed.FS

// Up applies every pending migration for the connected driver.
func Up(db *sqlx.DB, logger log.FieldLogger) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("database schema is up to date")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}

	version, _, err := m.Version()
	if err != nil {
		return errors.WithStack(err)
	}
	logger.WithField("version", version).Info("database schema migrated")
	return nil
}

// Down rolls back the given number of migrations.
func Down(db *sqlx.DB, steps int, logger log.FieldLogger) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil {
		return errors.Wrap(err, "failed to roll back migrations")
	}
	logger.WithField("steps", steps).Info("migrations rolled back")
	return nil
}

func newMigrate(db *sqlx.DB) (*migrate.Migrate, error) {
	var (
		dir    string
		driver database.Driver
		err    error
	)
	switch db.DriverName() {
	case DriverMySQL:
		dir = "mysql"
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	case DriverPgx:
		dir = "postgres"
		driver, err = migratepgx.WithInstance(db.DB, &migratepgx.Config{})
	default:
		return nil, errors.Errorf("unsupported database driver %q", db.DriverName())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migration driver")
	}

	source, err := iofs.New(files, dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	m, err := migrate.NewWithInstance("iofs", source, db.DriverName(), driver)
	return m, errors.Wrap(err, "failed to create migrator")
}

// Files exposes the embedded migration files of one dialect.
func Files(dir string) (fs.FS, error) {
	return fs.Sub(files, dir)
}
