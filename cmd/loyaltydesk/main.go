package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltydesk/internal/router"
	"loyaltydesk/pkg/config"
	"loyaltydesk/pkg/db"
	"loyaltydesk/pkg/featureflags"
	"loyaltydesk/pkg/health"
	"loyaltydesk/pkg/logger"
	"loyaltydesk/pkg/redis"
	"loyaltydesk/pkg/sequence"
	"loyaltydesk/pkg/server"
	"loyaltydesk/pkg/task"
	"loyaltydesk/services/customer"
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/membership"
	"loyaltydesk/services/notification"
	"loyaltydesk/services/onboarding"
	"loyaltydesk/services/reward"
	"loyaltydesk/services/tenant"
	"loyaltydesk/services/verification"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		featureflags.Module,
		health.Module,
		task.Client,
		task.Server,
		fx.Provide(
			provideSnowflakeNode,
			providePointGranter,
			provideTracerProvider,
		),
		notification.TaskModule,
		tenant.Module,
		customer.Module,
		loyalty.Module,
		reward.Module,
		notification.Module,
		verification.Module,
		membership.Module,
		onboarding.Module,
		router.Module,
		server.Module,
		fx.Invoke(
			autoMigrate,
			registerTaskHandlers,
		),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func providePointGranter(svc *loyalty.Service) customer.PointGranter {
	return svc
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&tenant.Tenant{},
		&membership.Staff{},
		&customer.Customer{},
		&loyalty.PointTransaction{},
		&loyalty.TierLevel{},
		&reward.Reward{},
		&reward.Redemption{},
		&notification.Notification{},
	)
}

func registerTaskHandlers(mux *asynq.ServeMux, svc *notification.Task) {
	mux.HandleFunc(notification.TaskDispatch, svc.HandleDispatchTask)
}
