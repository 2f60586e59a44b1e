package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/idempotency"
	"orderservice/pkg/order/infrastructure/memory"
	"orderservice/pkg/order/infrastructure/metrics"
	"orderservice/pkg/order/infrastructure/outbox"
	"orderservice/pkg/order/infrastructure/repository"
	"orderservice/pkg/order/infrastructure/transport"
)

const serviceName = "orderservice"

// backend is what a storage implementation offers to the service: scoped
// repositories, transactions and the pending outbox.
type backend interface {
	Provider() service.RepositoryProvider
	service.UnitOfWork
	outbox.Storage
}

func runService(c *cli.Context) error {
	conf, err := parseEnv()
	if err != nil {
		return err
	}
	logger := log.WithField("service", serviceName)

	store, closeStore, err := openBackend(c.Context, conf, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	keys, closeKeys, err := openIdempotencyStore(c.Context, conf)
	if err != nil {
		return err
	}
	defer closeKeys()

	publisher, closePublisher, err := openPublisher(c.Context, conf, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	repos := store.Provider()
	handler := transport.Router(transport.Config{
		Orders: service.NewOrderService(repos, store, service.OrderPolicy{
			AllowUnknownProducts: conf.AllowUnknownProducts,
		}, logger),
		Products:        service.NewProductService(repos, store),
		Customers:       service.NewCustomerService(repos, store),
		IdempotencyKeys: keys,
		IdempotencyTTL:  conf.IdempotencyTTL,
		Metrics:         metrics.New(),
		Logger:          logger,
	})
	relay := outbox.NewRelay(store, publisher, outbox.RelayConfig{
		Interval:  conf.OutboxInterval,
		BatchSize: conf.OutboxBatchSize,
	}, logger.WithField("component", "outbox"))

	httpServer := &http.Server{Addr: conf.HTTPAddress, Handler: handler}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", conf.GRPCAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", conf.GRPCAddress)
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		logger.WithField("address", conf.HTTPAddress).Info("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "HTTP server failed")
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("address", conf.GRPCAddress).Info("starting gRPC server")
		healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
		return errors.Wrap(grpcServer.Serve(listener), "gRPC server failed")
	})
	g.Go(func() error {
		return relay.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return errors.Wrap(httpServer.Shutdown(shutdownCtx), "failed to shut down HTTP server")
	})

	return g.Wait()
}

func openBackend(ctx context.Context, conf *config, logger log.FieldLogger) (backend, func(), error) {
	if conf.Backend == backendMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	db, err := openDatabase(ctx, conf)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("failed to close database")
		}
	}
	return repository.NewDatabase(db, logger), closeDB, nil
}

// openDatabase connects and pings the database until it answers or
// DatabaseWait elapses.
func openDatabase(ctx context.Context, conf *config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.DatabaseDriver, conf.dsn())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = conf.DatabaseWait
	err = backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		log.WithError(err).WithField("retryIn", next).Warn("database is not ready")
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return db, nil
}

func openIdempotencyStore(ctx context.Context, conf *config) (idempotency.Store, func(), error) {
	if conf.RedisAddress == "" {
		return idempotency.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: conf.RedisAddress})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "failed to connect to redis")
	}
	return idempotency.NewRedisStore(client, appID+":idempotency:"), func() { _ = client.Close() }, nil
}

func openPublisher(ctx context.Context, conf *config, logger log.FieldLogger) (outbox.Publisher, func(), error) {
	if conf.AMQPURL == "" {
		logger.Warn("no AMQP URL configured, events go to the log")
		return outbox.LogPublisher{Logger: logger.WithField("component", "outbox")}, func() {}, nil
	}

	publisher, err := outbox.NewRabbitMQPublisher(ctx, conf.AMQPURL, conf.AMQPExchange, conf.AMQPWait, logger)
	if err != nil {
		return nil, nil, err
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Error("failed to close RabbitMQ publisher")
		}
	}, nil
}
