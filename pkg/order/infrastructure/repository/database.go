package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"orderservice/pkg/order/domain/model"
	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/outbox"
)

const (
	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// Database is the relational backend. Queries are written with "?"
// placeholders and rebound for the connected driver.
type Database struct {
	db     *sqlx.DB
	logger log.FieldLogger
}

func NewDatabase(db *sqlx.DB, logger log.FieldLogger) *Database {
	return &Database{db: db, logger: logger}
}

func (d *Database) Provider() service.RepositoryProvider {
	return newProvider(d.db)
}

func (d *Database) Execute(ctx context.Context, fn func(provider service.RepositoryProvider) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	// no-op once committed
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			d.logger.WithError(rollbackErr).Error("failed to rollback transaction")
		}
	}()

	if err := fn(newProvider(tx)); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

func (d *Database) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	var rows []outboxRow
	err := sqlx.SelectContext(ctx, d.db, &rows, d.db.Rebind(
		`SELECT outbox_id, event_type, payload, created_at, sent_at FROM outbox WHERE sent_at IS NULL ORDER BY created_at LIMIT ?`,
	), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch pending outbox records")
	}

	records := make([]outbox.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (d *Database) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := d.db.ExecContext(ctx, d.db.Rebind(`UPDATE outbox SET sent_at = ? WHERE outbox_id = ?`), sentAt, id)
	return errors.Wrapf(err, "failed to mark outbox record %s sent", id)
}

type provider struct {
	customers  *customerRepository
	products   *productRepository
	orders     *orderRepository
	dispatcher service.EventDispatcher
}

func newProvider(ext sqlx.ExtContext) *provider {
	return &provider{
		customers:  &customerRepository{ext: ext},
		products:   &productRepository{ext: ext},
		orders:     &orderRepository{ext: ext},
		dispatcher: outbox.NewDispatcher(&outboxWriter{ext: ext}),
	}
}

func (p *provider) CustomerRepository() model.CustomerRepository { return p.customers }
func (p *provider) ProductRepository() model.ProductRepository   { return p.products }
func (p *provider) OrderRepository() model.OrderRepository       { return p.orders }
func (p *provider) EventDispatcher() service.EventDispatcher     { return p.dispatcher }

type outboxRow struct {
	ID        uuid.UUID  `db:"outbox_id"`
	EventType string     `db:"event_type"`
	Payload   []byte     `db:"payload"`
	CreatedAt time.Time  `db:"created_at"`
	SentAt    *time.Time `db:"sent_at"`
}

func (r outboxRow) record() outbox.Record {
	return outbox.Record{
		ID:        r.ID,
		EventType: r.EventType,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
		SentAt:    r.SentAt,
	}
}

type outboxWriter struct {
	ext sqlx.ExtContext
}

func (w *outboxWriter) Append(ctx context.Context, record outbox.Record) error {
	_, err := w.ext.ExecContext(ctx, w.ext.Rebind(
		`INSERT INTO outbox (outbox_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
	), record.ID, record.EventType, string(record.Payload), record.CreatedAt)
	return errors.Wrapf(err, "failed to append %s to outbox", record.EventType)
}

func isUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}
