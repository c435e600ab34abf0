package onboarding

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

// Link returns the QR onboarding URL for the caller's restaurant. This is
// the only handler here that requires a staff session.
func (h *Handler) Link(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.Error(errutil.Unauthorized("missing session", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": h.service.Link(sess.TenantID)})
}

type sendCodeRequest struct {
	Phone string `json:"phone"`
}

func (h *Handler) SendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	if err := h.service.SendCode(c.Request.Context(), c.Param("restaurant"), req.Phone); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

type checkCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *Handler) CheckCode(c *gin.Context) {
	var req checkCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	if err := h.service.VerifyCode(c.Request.Context(), c.Param("restaurant"), req.Phone, req.Code); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

func (h *Handler) Signup(c *gin.Context) {
	var params SignupParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	view, err := h.service.Signup(c.Request.Context(), c.Param("restaurant"), params)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *Handler) Wallet(c *gin.Context) {
	phone := c.Param("phone")
	if phone == "" {
		c.Error(errutil.ValidationFailed("phone is required", nil))
		return
	}

	view, err := h.service.Wallet(c.Request.Context(), c.Param("restaurant"), phone)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

type walletRedeemRequest struct {
	Phone    string `json:"phone"`
	Code     string `json:"code"`
	RewardID string `json:"reward_id"`
}

func (h *Handler) Redeem(c *gin.Context) {
	var req walletRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	view, err := h.service.Redeem(c.Request.Context(), c.Param("restaurant"), req.Phone, req.Code, req.RewardID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, view)
}
