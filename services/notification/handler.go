package notification

import (
	"net/http"

	"loyaltydesk/internal/session"
	"loyaltydesk/pkg/db/pagination"
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

func (h *Handler) List(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	views, pageInfo, err := h.service.List(c.Request.Context(), sess.TenantID, page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      views,
		"page_info": pageInfo,
	})
}
