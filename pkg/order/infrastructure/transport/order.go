package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"orderservice/pkg/order/domain/model"
	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/idempotency"
)

type createOrderRequest struct {
	CustomerID string `json:"customer_id"`
	Products   []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"products"`
}

type orderResponse struct {
	ID         uuid.UUID           `json:"id"`
	CustomerID uuid.UUID           `json:"customer_id"`
	Total      decimal.Decimal     `json:"total"`
	Items      []orderItemResponse `json:"items"`
	CreatedAt  time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func newOrderResponse(order *model.Order) orderResponse {
	resp := orderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		Items:      make([]orderItemResponse, 0, len(order.Items)),
		CreatedAt:  order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return resp
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]service.RequestedItem, 0, len(req.Products))
	for _, p := range req.Products {
		productID, err := parseID(p.ID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		items = append(items, service.RequestedItem{ProductID: productID, Quantity: p.Quantity})
	}

	key := idempotency.Key(r)
	if key != "" && h.keys != nil {
		existingID, reserved, err := h.keys.Reserve(r.Context(), key, h.keyTTL)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if !reserved {
			order, err := h.orders.FindOrder(r.Context(), existingID)
			if err != nil {
				h.writeError(w, err)
				return
			}
			h.writeJSON(w, http.StatusOK, newOrderResponse(order))
			return
		}
	}

	order, err := h.orders.CreateOrder(r.Context(), customerID, items)
	if err != nil {
		h.releaseKey(r, key)
		if reason := rejectionReason(err); reason != "" {
			h.metrics.OrdersRejected.WithLabelValues(reason).Inc()
		}
		h.writeError(w, err)
		return
	}
	h.metrics.OrdersCreated.Inc()

	if key != "" && h.keys != nil {
		// the client may be gone once the order is committed
		if err := h.keys.Complete(context.WithoutCancel(r.Context()), key, order.ID, h.keyTTL); err != nil {
			h.logger.WithError(err).WithFields(log.Fields{"key": key, "orderID": order.ID}).Error("failed to store idempotency key")
		}
	}
	h.writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) findOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.orders.FindOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) releaseKey(r *http.Request, key string) {
	if key == "" || h.keys == nil {
		return
	}
	if err := h.keys.Release(context.WithoutCancel(r.Context()), key); err != nil {
		h.logger.WithError(err).WithField("key", key).Error("failed to release idempotency key")
	}
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Wrapf(errMalformedRequest, "invalid id %q", raw)
	}
	return id, nil
}
