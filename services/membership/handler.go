package membership

import (
	"context"
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

// Me returns the caller's resolved membership and capability set.
func (h *Handler) Me(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	st, err := h.service.Get(c.Request.Context(), sess.MembershipID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"membership":   st,
		"capabilities": sess.Role.Capabilities(),
	})
}

func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	st, err := s.staff.FindOne(ctx, &Staff{ID: id})
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errutil.NotFound("membership not found", nil)
	}
	return st.ToView(), nil
}
