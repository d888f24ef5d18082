package http

import (
	"errors"
	"net/http"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/infra/auth/apikey"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type itemResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

type orderRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type orderResponse struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	OrderedBy string `json:"ordered_by"`
	Status    string `json:"status"`
}

func (s *Server) listItems(c *gin.Context) {
	items, err := s.items.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list items")
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{ID: item.ID, Description: item.Description, Price: item.Price})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) addOrder(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid order payload")
		return
	}
	order, err := s.orders.Create(c.Request.Context(), domain.Order{
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		OrderedBy: principal.Name,
		Status:    domain.OrderStatusPlaced,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to place order")
		return
	}
	c.JSON(http.StatusCreated, orderToResponse(order))
}

func (s *Server) getOrder(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	order, err := s.orders.GetByID(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(c, http.StatusNotFound, "order not found")
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to load order")
		return
	}
	// Customers only see their own orders; resellers see everything.
	if order.OrderedBy != principal.Name && !principal.HasRole(apikey.ResellerRole) {
		writeError(c, http.StatusForbidden, "forbidden")
		return
	}
	c.JSON(http.StatusOK, orderToResponse(*order))
}

func (s *Server) listOrders(c *gin.Context) {
	orders, err := s.orders.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list orders")
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, orderToResponse(order))
	}
	c.JSON(http.StatusOK, out)
}

func orderToResponse(order domain.Order) orderResponse {
	return orderResponse{
		ID:        order.ID,
		ItemID:    order.ItemID,
		Quantity:  order.Quantity,
		OrderedBy: order.OrderedBy,
		Status:    string(order.Status),
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    status,
		Message: message,
	})
}
