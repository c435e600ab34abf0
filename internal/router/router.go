package router

import (
	"loyaltydesk/internal/session"
	"loyaltydesk/pkg/config"
	"loyaltydesk/pkg/health"
	"loyaltydesk/pkg/middleware"
	"loyaltydesk/services/customer"
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/membership"
	"loyaltydesk/services/notification"
	"loyaltydesk/services/onboarding"
	"loyaltydesk/services/reward"
	"loyaltydesk/services/tenant"

	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("router",
	fx.Provide(New),
)

type Params struct {
	fx.In
	Config *config.Config
	Health health.HealthService

	Membership    *membership.Service
	MemberHandler *membership.Handler
	Tenant        *tenant.Handler
	Customer      *customer.Handler
	Loyalty       *loyalty.Handler
	Reward        *reward.Handler
	Notification  *notification.Handler
	Onboarding    *onboarding.Handler
}

// New assembles the HTTP surface. The manager console lives under /api/v1
// behind session resolution and capability checks; the customer wallet under
// /wallet/:restaurant is public and scoped by verified phone instead.
func New(p Params) http.Handler {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)

	api := r.Group("/api/v1")
	api.Use(p.Membership.RequireSession())
	{
		api.GET("/me", p.MemberHandler.Me)

		api.GET("/tenant",
			membership.RequireCapability(session.CapManageSettings), p.Tenant.GetSettings)
		api.PATCH("/tenant/settings",
			membership.RequireCapability(session.CapManageSettings), p.Tenant.UpdateSettings)

		api.GET("/customers",
			membership.RequireCapability(session.CapViewCustomers), p.Customer.List)
		api.POST("/customers",
			membership.RequireCapability(session.CapManageCustomers), p.Customer.Create)
		api.GET("/customers/:id",
			membership.RequireCapability(session.CapViewCustomers), p.Customer.Get)
		api.POST("/customers/:id/points",
			membership.RequireCapability(session.CapAddPoints), p.Loyalty.AddPoints)
		api.GET("/customers/:id/transactions",
			membership.RequireCapability(session.CapViewCustomers), p.Loyalty.ListTransactions)
		api.POST("/customers/:id/redemptions",
			membership.RequireCapability(session.CapRedeemRewards), p.Reward.Redeem)
		api.GET("/customers/:id/redemptions",
			membership.RequireCapability(session.CapViewCustomers), p.Reward.ListRedemptions)

		api.GET("/rewards",
			membership.RequireCapability(session.CapViewCustomers), p.Reward.List)
		api.POST("/rewards",
			membership.RequireCapability(session.CapManageRewards), p.Reward.Create)

		api.GET("/notifications",
			membership.RequireCapability(session.CapViewReports), p.Notification.List)
		api.GET("/stats",
			membership.RequireCapability(session.CapViewReports), p.Customer.Stats)
		api.GET("/onboarding-link",
			membership.RequireCapability(session.CapManageSettings), p.Onboarding.Link)
	}

	wallet := r.Group("/wallet/:restaurant")
	{
		wallet.POST("/verify/send", p.Onboarding.SendCode)
		wallet.POST("/verify/check", p.Onboarding.CheckCode)
		wallet.POST("/signup", p.Onboarding.Signup)
		wallet.GET("/customers/:phone", p.Onboarding.Wallet)
		wallet.POST("/redeem", p.Onboarding.Redeem)
	}

	return r
}
