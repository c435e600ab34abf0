package tenant

import (
	"context"

	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Tenant]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[Tenant](p.DB),
	}
}

func (s *Service) Get(ctx context.Context, tenantID string) (*View, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("tenant_id", tenantID),
	)

	row, err := s.repo.FindOne(ctx, &Tenant{ID: tenantID})
	if err != nil {
		zapLog.Error("failed query get tenant by id", zap.Error(err))
		return nil, errutil.Internal("failed to get restaurant", err)
	}

	if row == nil {
		zapLog.Warn("tenant not found")
		return nil, errutil.NotFound("restaurant not found", nil)
	}

	return row.ToView(), nil
}

type UpdateSettingsParams struct {
	Name              *string `json:"name"`
	Currency          *string `json:"currency"`
	PointsPerCurrency *int64  `json:"points_per_currency"`
	WelcomeBonus      *int64  `json:"welcome_bonus"`
	ReferralBonus     *int64  `json:"referral_bonus"`
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, p UpdateSettingsParams) (*View, error) {
	row, err := s.repo.FindOne(ctx, &Tenant{ID: tenantID})
	if err != nil {
		zap.L().Error("failed query get tenant by id", zap.Error(err))
		return nil, errutil.Internal("failed to get restaurant", err)
	}
	if row == nil {
		return nil, errutil.NotFound("restaurant not found", nil)
	}

	updates := map[string]any{}
	if p.Name != nil && *p.Name != "" {
		updates["name"] = *p.Name
	}
	if p.Currency != nil && *p.Currency != "" {
		updates["currency"] = *p.Currency
	}
	if p.PointsPerCurrency != nil {
		if *p.PointsPerCurrency <= 0 {
			return nil, errutil.ValidationFailed("points_per_currency must be positive", nil)
		}
		updates["points_per_currency"] = *p.PointsPerCurrency
	}
	if p.WelcomeBonus != nil {
		if *p.WelcomeBonus < 0 {
			return nil, errutil.ValidationFailed("welcome_bonus must not be negative", nil)
		}
		updates["welcome_bonus"] = *p.WelcomeBonus
	}
	if p.ReferralBonus != nil {
		if *p.ReferralBonus < 0 {
			return nil, errutil.ValidationFailed("referral_bonus must not be negative", nil)
		}
		updates["referral_bonus"] = *p.ReferralBonus
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, tenantID, updates); err != nil {
			zap.L().Error("failed to update tenant settings", zap.Error(err))
			return nil, errutil.Internal("failed to update settings", err)
		}
	}

	return s.Get(ctx, tenantID)
}
