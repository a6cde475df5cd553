package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/consumer"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/idempotency"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/validation"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

// OrderStore is the part of orders.Store the API uses. Only creation writes.
type OrderStore interface {
	CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem any, o orders.Order) (orders.Order, error)
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int32) ([]orders.Order, error)
	ListByStatus(ctx context.Context, status orders.Status, limit int32) ([]orders.Order, error)
}

// IdempotencyStore is the part of idempotency.Store the API uses.
type IdempotencyStore interface {
	Table() string
	NewRecord(key, orderID, orderTimestamp string) idempotency.Record
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// WorkPublisher enqueues work items for the order pipeline.
type WorkPublisher interface {
	SendJSON(ctx context.Context, payload any, attributes map[string]string) (string, error)
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Orders      OrderStore
	Idempotency IdempotencyStore
	Publisher   WorkPublisher
	Log         *zap.Logger
	NowFunc     func() time.Time
}

type ordersHandler struct {
	HandlerConfig
	v *validatorv10.Validate
}

// RegisterOrdersRoutes registers routes for the order API.
func RegisterOrdersRoutes(r gin.IRoutes, cfg HandlerConfig) {
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	h := &ordersHandler{HandlerConfig: cfg, v: validation.New()}

	r.GET("/health", h.health)
	r.POST("/orders", h.create)
	r.GET("/orders", h.listByStatus)
	r.GET("/orders/:orderId", h.get)
	r.GET("/customers/:customerId/orders", h.listByCustomer)
}

type createResponse struct {
	OrderID     string        `json:"orderId"`
	Status      string        `json:"status"`
	TotalAmount orders.Amount `json:"totalAmount"`
	Timestamp   string        `json:"timestamp"`
}

func (h *ordersHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ordersHandler) create(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	// A missing key makes the request non-idempotent but still accepted.
	idempKey := c.GetHeader("Idempotency-Key")
	if idempKey == "" {
		idempKey = uuid.NewString()
	}
	log := h.Log.With(zap.String("idempotency_key", idempKey))

	now := h.NowFunc().UTC()
	order := req.ToOrder(uuid.NewString())
	order.CreatedAt = now
	order.Timestamp = now.Format(orders.TimestampLayout)

	rec := h.Idempotency.NewRecord(idempKey, order.OrderID, order.Timestamp)
	order, err := h.Orders.CreateWithIdempotencyTransaction(ctx, h.Idempotency.Table(), rec, order)
	if errors.Is(err, orders.ErrTransactionCanceled) {
		h.replay(c, log, idempKey)
		return
	}
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}

	log = log.With(zap.String("order_id", order.OrderID))
	log.Info("order created", zap.String("customer_id", order.CustomerID))
	h.enqueue(c, log, idempKey, order.OrderID, createResponse{
		OrderID:     order.OrderID,
		Status:      order.Status.String(),
		TotalAmount: order.TotalAmount,
		Timestamp:   order.Timestamp,
	})
}

// enqueue publishes the work item and settles the idempotency record.
func (h *ordersHandler) enqueue(c *gin.Context, log *zap.Logger, idempKey, orderID string, resp createResponse) {
	ctx := c.Request.Context()

	item := consumer.WorkItem{
		OrderID:   orderID,
		Action:    consumer.ActionProcessOrder,
		Timestamp: h.NowFunc().UTC().Format(time.RFC3339),
	}
	attrs := map[string]string{
		"idempotency_key": idempKey,
		"correlation_id":  c.GetHeader("X-Request-Id"),
	}
	msgID, err := h.Publisher.SendJSON(ctx, item, attrs)
	if err != nil {
		log.Error("failed to enqueue order", zap.Error(err))
		if mErr := h.Idempotency.MarkFailed(ctx, idempKey, fmt.Sprintf("sqs_send_failed: %v", err)); mErr != nil {
			log.Warn("failed to mark idempotency record failed", zap.Error(mErr))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed", "orderId": orderID})
		return
	}
	log.Info("order enqueued", zap.String("message_id", msgID))

	body, err := json.Marshal(resp)
	if err == nil {
		if mErr := h.Idempotency.MarkDone(ctx, idempKey, string(body), http.StatusCreated); mErr != nil {
			log.Warn("failed to mark idempotency record done", zap.Error(mErr))
		}
	}

	c.Header("Location", "/orders/"+orderID)
	c.JSON(http.StatusCreated, resp)
}

// replay answers a request whose Idempotency-Key was seen before.
func (h *ordersHandler) replay(c *gin.Context, log *zap.Logger, idempKey string) {
	ctx := c.Request.Context()

	rec, err := h.Idempotency.Get(ctx, idempKey)
	if err != nil {
		log.Error("idempotency lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if rec == nil {
		// The transaction was canceled for another reason.
		c.JSON(http.StatusConflict, gin.H{"error": "order_conflict"})
		return
	}

	log = log.With(zap.String("order_id", rec.OrderID), zap.String("idempotency_status", rec.Status))
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"orderId": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "orderId": rec.OrderID})
	case idempotency.StatusFailed:
		// The order exists but was never enqueued; retry the enqueue.
		log.Info("re-enqueueing order after failed publish")
		order, err := h.Orders.Get(ctx, rec.OrderID)
		if err != nil {
			log.Error("failed to load order for re-enqueue", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "orderId": rec.OrderID})
			return
		}
		h.enqueue(c, log, idempKey, order.OrderID, createResponse{
			OrderID:     order.OrderID,
			Status:      order.Status.String(),
			TotalAmount: order.TotalAmount,
			Timestamp:   order.Timestamp,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func (h *ordersHandler) get(c *gin.Context) {
	orderID := c.Param("orderId")
	o, err := h.Orders.Get(c.Request.Context(), orderID)
	if errors.Is(err, orders.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	}
	if err != nil {
		h.Log.Error("failed to get order", zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *ordersHandler) listByCustomer(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	customerID := c.Param("customerId")
	list, err := h.Orders.ListByCustomer(c.Request.Context(), customerID, limit)
	if err != nil {
		h.Log.Error("failed to list orders by customer", zap.String("customer_id", customerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

func (h *ordersHandler) listByStatus(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	status, err := orders.ParseStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "msg": err.Error()})
		return
	}
	list, err := h.Orders.ListByStatus(c.Request.Context(), status, limit)
	if err != nil {
		h.Log.Error("failed to list orders by status", zap.Stringer("status", status), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

// listLimit parses ?limit=, writing a 400 on bad input.
func listLimit(c *gin.Context) (int32, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "msg": fmt.Sprintf("limit must be 1..%d", maxListLimit)})
		return 0, false
	}
	return int32(n), true
}
