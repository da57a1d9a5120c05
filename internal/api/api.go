// Package api serves the /api/orders HTTP contract on top of the gateway.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/dashboard"
	"order-dashboard/internal/domain"
	"order-dashboard/internal/gateway"
	"order-dashboard/internal/lifecycle"
)

// Orders is the slice of the gateway the handlers need.
type Orders interface {
	List(ctx context.Context) []domain.Order
	Create(ctx context.Context, req gateway.CreateRequest) (domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.Status) (domain.Order, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	orders Orders
	logger *logger.Logger
}

func NewHandler(orders Orders, lg *logger.Logger) *Handler {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Handler{orders: orders, logger: lg}
}

// NewRouter builds the engine with recovery and request logging.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.GET("/orders", h.ListOrders)
	api.POST("/orders", h.CreateOrder)
	api.PUT("/orders", h.missingID)
	api.DELETE("/orders", h.missingID)
	api.PUT("/orders/:id", h.UpdateStatus)
	api.DELETE("/orders/:id", h.DeleteOrder)
	return r
}

const requestIDHeader = "X-Request-ID"

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)
		start := time.Now()
		c.Next()
		h.logger.With(rid).Info("http_request", map[string]any{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// ListOrders never fails: the gateway falls back down to the sample set.
// An optional ?status= narrows the result.
func (h *Handler) ListOrders(c *gin.Context) {
	f, err := dashboard.ParseFilter(c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard.Apply(h.orders.List(c.Request.Context()), f))
}

type createItem struct {
	Name       string `json:"name"`
	Quantity   *int   `json:"quantity"`
	Variations string `json:"variations"`
}

type createRequest struct {
	OrderID             string             `json:"order_id"`
	TableNumber         domain.TableNumber `json:"table_number"`
	Items               []createItem       `json:"items"`
	SpecialInstructions string             `json:"special_instructions"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cuerpo de la petición inválido", "details": err.Error()})
		return
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		qty := 1
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		items = append(items, domain.OrderItem{
			Name:       strings.TrimSpace(it.Name),
			Quantity:   qty,
			Variations: strings.TrimSpace(it.Variations),
		})
	}

	o, err := h.orders.Create(c.Request.Context(), gateway.CreateRequest{
		DisplayID:           req.OrderID,
		TableNumber:         req.TableNumber,
		Items:               items,
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		h.missingID(c)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cuerpo de la petición inválido", "details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Estado no especificado"})
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	o, err := h.orders.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		h.missingID(c)
		return
	}
	deleted := h.lookup(c.Request.Context(), id)
	if err := h.orders.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": lifecycle.DeletedMessage(deleted)})
}

// lookup finds the order for its display code; unknown ids keep the raw id.
func (h *Handler) lookup(ctx context.Context, id string) domain.Order {
	for _, o := range h.orders.List(ctx) {
		if o.ID == id {
			return o
		}
	}
	return domain.Order{ID: id, DisplayID: id}
}

func (h *Handler) missingID(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "ID de orden no especificado"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		ve *domain.ValidationError
		te *lifecycle.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{"error": te.Error(), "from": te.From, "to": te.To})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Comanda no encontrada"})
	default:
		h.logger.Error("request_failed", err, map[string]any{"method": c.Request.Method, "path": c.FullPath()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al procesar la comanda", "details": err.Error()})
	}
}
