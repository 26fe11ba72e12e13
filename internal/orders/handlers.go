package orders

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tradefab/order-api/pkg/middleware"
	"github.com/tradefab/order-api/pkg/response"
)

// OrderResponse is the business payload for place and cancel commands.
// Rejections ride here with status REJECTED; the HTTP call itself succeeds.
type OrderResponse struct {
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func toResponse(result *Result) OrderResponse {
	return OrderResponse{
		OrderID:   result.OrderID,
		Status:    result.Status,
		Message:   result.Message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// GinHandlers contains HTTP handlers for order command endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceOrderHandler handles POST requests to place orders.
// Requires a validated session; the account id comes from the call context.
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetInt64(middleware.AccountIDKey)
		if accountID <= 0 {
			response.Success(c, OrderResponse{
				Status:    StatusRejected,
				Message:   "Unauthorized",
				Timestamp: time.Now().UnixMilli(),
			})
			return
		}

		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.PlaceOrder(c.Request.Context(), accountID, req)
		if err != nil {
			log.Error().
				Err(err).
				Int64("account_id", accountID).
				Str("symbol", req.Symbol).
				Msg("place order failed")
			response.Success(c, OrderResponse{
				Status:    StatusRejected,
				Message:   "Internal error",
				Timestamp: time.Now().UnixMilli(),
			})
			return
		}

		response.Success(c, toResponse(result))
	}
}

// CancelOrderHandler handles POST requests to cancel orders.
// URL parameter: order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetInt64(middleware.AccountIDKey)
		if accountID <= 0 {
			response.Success(c, OrderResponse{
				Status:    StatusRejected,
				Message:   "Unauthorized",
				Timestamp: time.Now().UnixMilli(),
			})
			return
		}

		orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "Invalid order ID")
			return
		}

		var req CancelOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.CancelOrder(c.Request.Context(), accountID, orderID, req.IdempotencyKey)
		if err != nil {
			log.Error().
				Err(err).
				Int64("account_id", accountID).
				Int64("order_id", orderID).
				Msg("cancel order failed")
			response.Success(c, OrderResponse{
				OrderID:   orderID,
				Status:    StatusRejected,
				Message:   "Internal error",
				Timestamp: time.Now().UnixMilli(),
			})
			return
		}

		response.Success(c, toResponse(result))
	}
}

// FillEventHandler handles POST requests from the downstream fill stream.
// Non-matching events are acknowledged without effect.
func (h *GinHandlers) FillEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event FillEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.ApplyFill(c.Request.Context(), event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.EventID).
				Msg("fill event processing failed")
			response.InternalError(c, "Failed to process fill event")
			return
		}

		response.Success(c, gin.H{"acknowledged": true})
	}
}
