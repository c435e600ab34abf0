package loyalty

import (
	"net/http"
	"strconv"

	"loyaltydesk/internal/session"
	"loyaltydesk/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	service *Service
}

type HandlerParams struct {
	fx.In
	Service *Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{service: p.Service}
}

type addPointsRequest struct {
	Kind        string `json:"kind"`
	Points      int64  `json:"points"`
	AmountSpent *int64 `json:"amount_spent"`
	Description string `json:"description"`
}

func (h *Handler) AddPoints(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	var req addPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	kind := TransactionKind(req.Kind)
	if req.Kind == "" {
		kind = Purchase
	}

	cust, err := h.service.AddPoints(c.Request.Context(), sess.TenantID, AccrueParams{
		CustomerID:  c.Param("id"),
		Kind:        kind,
		Points:      req.Points,
		AmountSpent: req.AmountSpent,
		Description: req.Description,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, cust.ToView())
}

func (h *Handler) ListTransactions(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	views, err := h.service.ListTransactions(c.Request.Context(), sess.TenantID, c.Param("id"), limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}
