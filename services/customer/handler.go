package customer

import (
	"net/http"

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

func (h *Handler) List(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	views, pageInfo, err := h.service.List(c.Request.Context(), sess.TenantID, params)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      views,
		"page_info": pageInfo,
	})
}

func (h *Handler) Get(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	view, err := h.service.Get(c.Request.Context(), sess.TenantID, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) Create(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	var params CreateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	view, err := h.service.Create(c.Request.Context(), sess.TenantID, params)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *Handler) Stats(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), sess.TenantID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
