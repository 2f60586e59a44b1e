package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/idempotency"
	"orderservice/pkg/order/infrastructure/metrics"
)

type Config struct {
	Orders    service.OrderService
	Products  service.ProductService
	Customers service.CustomerService

	IdempotencyKeys idempotency.Store
	IdempotencyTTL  time.Duration

	Metrics *metrics.Metrics
	Logger  log.FieldLogger
}

type Handler struct {
	orders    service.OrderService
	products  service.ProductService
	customers service.CustomerService
	keys      idempotency.Store
	keyTTL    time.Duration
	metrics   *metrics.Metrics
	logger    log.FieldLogger
}

func Router(config Config) http.Handler {
	h := &Handler{
		orders:    config.Orders,
		products:  config.Products,
		customers: config.Customers,
		keys:      config.IdempotencyKeys,
		keyTTL:    config.IdempotencyTTL,
		metrics:   config.Metrics,
		logger:    config.Logger,
	}
	if h.keyTTL <= 0 {
		h.keyTTL = 24 * time.Hour
	}

	r := mux.NewRouter()
	r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	s := r.PathPrefix("/api/v1").Subrouter()
	s.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	s.HandleFunc("/orders/{id}", h.findOrder).Methods(http.MethodGet)
	s.HandleFunc("/products", h.createProduct).Methods(http.MethodPost)
	s.HandleFunc("/products/{id}", h.findProduct).Methods(http.MethodGet)
	s.HandleFunc("/products/{id}/price", h.changeProductPrice).Methods(http.MethodPut)
	s.HandleFunc("/products/{id}/stock", h.receiveStock).Methods(http.MethodPost)
	s.HandleFunc("/customers", h.registerCustomer).Methods(http.MethodPost)
	s.HandleFunc("/customers/{id}", h.findCustomer).Methods(http.MethodGet)
	s.Use(h.metricsMiddleware)

	return h.logMiddleware(r)
}
