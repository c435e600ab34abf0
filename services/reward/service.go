package reward

import (
	"context"
	"fmt"
	"time"

	"loyaltydesk/pkg/db/option"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/pkg/sequence"
	"loyaltydesk/pkg/task"
	"loyaltydesk/services/customer"
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/notification"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	seq   sequence.Generator
	asynq task.Enqueuer

	rewards     repository.Repository[Reward]
	redemptions repository.Repository[Redemption]
	customers   repository.Repository[customer.Customer]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Seq   sequence.Generator `optional:"true"`
	Asynq task.Enqueuer
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		seq:   p.Seq,
		asynq: p.Asynq,

		rewards:     repository.ProvideStore[Reward](p.DB),
		redemptions: repository.ProvideStore[Redemption](p.DB),
		customers:   repository.ProvideStore[customer.Customer](p.DB),
	}
}

func (s *Service) List(ctx context.Context, tenantID string, onlyActive bool) ([]*View, error) {
	query := &Reward{TenantID: tenantID}
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "points_required",
			OrderBy: "asc",
			Allow:   map[string]bool{"points_required": true, "created_at": true},
		}),
	}
	if onlyActive {
		opts = append(opts, func(tx *gorm.DB) *gorm.DB { return tx.Where("active = ?", true) })
	}

	rows, err := s.rewards.Find(ctx, query, opts...)
	if err != nil {
		zap.L().Error("failed to list rewards", zap.Error(err))
		return nil, errutil.Internal("failed to list rewards", err)
	}

	out := make([]*View, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToView())
	}
	return out, nil
}

type CreateParams struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	PointsRequired int64      `json:"points_required"`
	MinTier        string     `json:"min_tier"`
	TotalAvailable *int64     `json:"total_available"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (s *Service) Create(ctx context.Context, tenantID string, p CreateParams) (*View, error) {
	if p.Name == "" {
		return nil, errutil.ValidationFailed("name is required", nil)
	}
	if p.PointsRequired <= 0 {
		return nil, errutil.ValidationFailed("points_required must be positive", nil)
	}
	if p.MinTier == "" {
		p.MinTier = loyalty.TierBronze.String()
	}
	if loyalty.Tier(p.MinTier).Rank() < 0 {
		return nil, errutil.ValidationFailed("unknown tier", nil)
	}
	if p.TotalAvailable != nil && *p.TotalAvailable <= 0 {
		return nil, errutil.ValidationFailed("total_available must be positive", nil)
	}

	row := &Reward{
		ID:             s.node.Generate().String(),
		TenantID:       tenantID,
		Name:           p.Name,
		Description:    p.Description,
		PointsRequired: p.PointsRequired,
		MinTier:        p.MinTier,
		TotalAvailable: p.TotalAvailable,
		Active:         true,
		ExpiresAt:      p.ExpiresAt,
	}

	if err := s.rewards.Create(ctx, row); err != nil {
		zap.L().Error("failed to create reward", zap.Error(err))
		return nil, errutil.Internal("failed to create reward", err)
	}

	return row.ToView(), nil
}

// Redeem admits or rejects a redemption and applies the compensating writes
// as one serializable unit. Preconditions are checked in order, first
// failure wins; the debit and counter increment carry conditional guards so
// two concurrent requests racing on a stale read cannot both land.
func (s *Service) Redeem(ctx context.Context, tenantID, customerID, rewardID string) (*RedemptionView, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("tenant_id", tenantID),
		zap.String("customer_id", customerID),
		zap.String("reward_id", rewardID),
	)

	var redemption *Redemption
	var cust *customer.Customer
	var rew *Reward

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		cust, err = s.customers.WithTrx(tx).FindOne(ctx, &customer.Customer{
			ID:       customerID,
			TenantID: tenantID,
		}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if cust == nil {
			return errutil.NotFound("customer not found", nil)
		}

		rew, err = s.rewards.WithTrx(tx).FindOne(ctx, &Reward{
			ID:       rewardID,
			TenantID: tenantID,
		}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if rew == nil || !rew.Active {
			return errutil.NotFound("reward not found", nil)
		}
		if rew.ExpiresAt != nil && rew.ExpiresAt.Before(time.Now()) {
			return errutil.UnprocessableEntity("reward is no longer available", nil)
		}

		if cust.TotalPoints < rew.PointsRequired {
			shortfall := rew.PointsRequired - cust.TotalPoints
			return errutil.ValidationFailed(
				fmt.Sprintf("insufficient points: %d more required", shortfall), nil)
		}

		tierHeld := loyalty.TierForPoints(cust.LifetimePoints)
		tierNeeded := loyalty.ParseTier(rew.MinTier)
		if tierHeld.Rank() < tierNeeded.Rank() {
			return errutil.ValidationFailed(
				fmt.Sprintf("requires %s tier", tierNeeded), nil)
		}

		if rew.TotalAvailable != nil && rew.TotalRedeemed >= *rew.TotalAvailable {
			return errutil.UnprocessableEntity("reward is no longer available", nil)
		}

		// Guarded writes: re-assert the preconditions in the UPDATE itself so
		// a concurrent redemption that slipped past the reads above fails
		// here instead of double-spending. Each statement starts from its own
		// session; chaining both off tx would leak the first statement's
		// resolved table into the second.
		res := tx.WithContext(ctx).Model(&customer.Customer{}).
			Where("id = ? AND tenant_id = ? AND total_points >= ?", cust.ID, tenantID, rew.PointsRequired).
			Updates(map[string]any{
				"total_points": gorm.Expr("total_points - ?", rew.PointsRequired),
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.ValidationFailed("insufficient points", nil)
		}

		res = tx.WithContext(ctx).Model(&Reward{}).
			Where("id = ? AND tenant_id = ? AND (total_available IS NULL OR total_redeemed < total_available)", rew.ID, tenantID).
			Updates(map[string]any{
				"total_redeemed": gorm.Expr("total_redeemed + 1"),
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.UnprocessableEntity("reward is no longer available", nil)
		}

		code := ""
		if s.seq != nil {
			if c, err := s.seq.NextRedemptionCode(ctx, tenantID); err == nil {
				code = c
			}
		}

		redemption = &Redemption{
			ID:         s.node.Generate().String(),
			TenantID:   tenantID,
			CustomerID: cust.ID,
			RewardID:   rew.ID,
			Code:       code,
			PointsUsed: rew.PointsRequired,
			Status:     Pending,
		}

		return s.redemptions.WithTrx(tx).Create(ctx, redemption)
	}); err != nil {
		zapLog.Warn("redemption rejected", zap.Error(err))
		return nil, err
	}

	if _, err := s.asynq.Enqueue(notification.NewDispatchTask(notification.DispatchPayload{
		TenantID: tenantID,
		Kind:     notification.Redemption.String(),
		Title:    "Reward redeemed",
		Message:  fmt.Sprintf("%s redeemed %s for %d points", cust.Name, rew.Name, rew.PointsRequired),
		Metadata: map[string]string{"customer_id": cust.ID, "reward_id": rew.ID},
	})); err != nil {
		zapLog.Warn("failed to enqueue redemption notification", zap.Error(err))
	}

	return redemption.ToView(), nil
}

// ListRedemptions returns a customer's redemption history, newest first.
func (s *Service) ListRedemptions(ctx context.Context, tenantID, customerID string) ([]*RedemptionView, error) {
	rows, err := s.redemptions.Find(ctx, &Redemption{
		TenantID:   tenantID,
		CustomerID: customerID,
	}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"created_at": true},
	}))
	if err != nil {
		zap.L().Error("failed to list redemptions", zap.Error(err))
		return nil, errutil.Internal("failed to list redemptions", err)
	}

	out := make([]*RedemptionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToView())
	}
	return out, nil
}

// Eligible applies the same precondition chain as Redeem without writing,
// for wallet display.
func (s *Service) Eligible(cust *customer.Customer, rew *Reward) bool {
	if !rew.Active {
		return false
	}
	if rew.ExpiresAt != nil && rew.ExpiresAt.Before(time.Now()) {
		return false
	}
	if cust.TotalPoints < rew.PointsRequired {
		return false
	}
	if loyalty.TierForPoints(cust.LifetimePoints).Rank() < loyalty.ParseTier(rew.MinTier).Rank() {
		return false
	}
	if rew.TotalAvailable != nil && rew.TotalRedeemed >= *rew.TotalAvailable {
		return false
	}
	return true
}
