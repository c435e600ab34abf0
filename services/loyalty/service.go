package loyalty

import (
	"context"
	"fmt"
	"time"

	"loyaltydesk/pkg/db/option"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/pkg/task"
	"loyaltydesk/services/customer"
	"loyaltydesk/services/notification"
	"loyaltydesk/services/tenant"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	asynq task.Enqueuer

	customers    repository.Repository[customer.Customer]
	transactions repository.Repository[PointTransaction]
	tenants      repository.Repository[tenant.Tenant]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Asynq task.Enqueuer
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		asynq: p.Asynq,

		customers:    repository.ProvideStore[customer.Customer](p.DB),
		transactions: repository.ProvideStore[PointTransaction](p.DB),
		tenants:      repository.ProvideStore[tenant.Tenant](p.DB),
	}
}

type AccrueParams struct {
	CustomerID  string
	Kind        TransactionKind
	Points      int64
	AmountSpent *int64 // minor currency units; fills visit stats when set
	Description string
}

// AddPoints applies an accrual as one transaction: append the ledger row,
// bump the customer's totals and re-derive tier and progress from lifetime
// points. When Points is zero and an amount is given, points are computed
// from the restaurant's points-per-currency setting. A tier change enqueues
// a notification after commit.
func (s *Service) AddPoints(ctx context.Context, tenantID string, p AccrueParams) (*customer.Customer, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("tenant_id", tenantID),
		zap.String("customer_id", p.CustomerID),
	)

	if p.Kind.String() == "" {
		return nil, errutil.BadRequest("unsupported transaction kind", nil)
	}

	points := p.Points
	if points == 0 && p.AmountSpent != nil {
		t, err := s.tenants.FindOne(ctx, &tenant.Tenant{ID: tenantID})
		if err != nil {
			zapLog.Error("failed to load tenant settings", zap.Error(err))
			return nil, errutil.Internal("failed to load settings", err)
		}
		if t == nil {
			return nil, errutil.NotFound("restaurant not found", nil)
		}
		points = (*p.AmountSpent / 100) * t.PointsPerCurrency
	}

	if points <= 0 {
		return nil, errutil.ValidationFailed("points must be positive", nil)
	}

	var updated *customer.Customer
	var oldTier, newTier Tier

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		cust, err := s.customers.WithTrx(tx).FindOne(ctx, &customer.Customer{
			ID:       p.CustomerID,
			TenantID: tenantID,
		})
		if err != nil {
			return err
		}
		if cust == nil {
			return errutil.NotFound("customer not found", nil)
		}

		now := time.Now()
		oldTier = ParseTier(cust.CurrentTier)

		entry := &PointTransaction{
			ID:          s.node.Generate().String(),
			TenantID:    tenantID,
			CustomerID:  cust.ID,
			Kind:        p.Kind,
			PointDelta:  points,
			AmountSpent: p.AmountSpent,
			Description: p.Description,
		}
		if err := s.transactions.WithTrx(tx).Create(ctx, entry); err != nil {
			return err
		}

		lifetime := cust.LifetimePoints + points
		newTier = TierForPoints(lifetime)

		updates := map[string]any{
			"total_points":    gorm.Expr("total_points + ?", points),
			"lifetime_points": lifetime,
			"current_tier":    newTier.String(),
			"tier_progress":   TierProgress(lifetime),
			"updated_at":      now,
		}
		if p.AmountSpent != nil {
			updates["visit_count"] = gorm.Expr("visit_count + 1")
			updates["total_spent"] = gorm.Expr("total_spent + ?", *p.AmountSpent)
			updates["last_visit"] = now
		}

		if err := s.customers.WithTrx(tx).Update(ctx, cust.ID, updates); err != nil {
			return err
		}

		updated, err = s.customers.WithTrx(tx).FindOne(ctx, &customer.Customer{ID: cust.ID})
		return err
	}); err != nil {
		zapLog.Error("failed to add points", zap.Error(err))
		return nil, err
	}

	if oldTier != newTier {
		s.notifyTierChange(updated, oldTier, newTier, zapLog)
	}

	return updated, nil
}

// GrantSignupBonus satisfies customer.PointGranter.
func (s *Service) GrantSignupBonus(ctx context.Context, tenantID, customerID string, points int64) error {
	_, err := s.AddPoints(ctx, tenantID, AccrueParams{
		CustomerID:  customerID,
		Kind:        Signup,
		Points:      points,
		Description: "Welcome bonus",
	})
	return err
}

func (s *Service) notifyTierChange(cust *customer.Customer, oldTier, newTier Tier, zapLog *zap.Logger) {
	if _, err := s.asynq.Enqueue(notification.NewDispatchTask(notification.DispatchPayload{
		TenantID: cust.TenantID,
		Kind:     notification.TierChange.String(),
		Title:    "Tier upgrade",
		Message:  fmt.Sprintf("%s moved from %s to %s", cust.Name, oldTier, newTier),
		Metadata: map[string]string{"customer_id": cust.ID},
	})); err != nil {
		zapLog.Warn("failed to enqueue tier change notification", zap.Error(err))
	}
}

// ListTransactions returns the customer's recent activity, newest first.
func (s *Service) ListTransactions(ctx context.Context, tenantID, customerID string, limit int) ([]*TransactionView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.transactions.Find(ctx, &PointTransaction{
		TenantID:   tenantID,
		CustomerID: customerID,
	},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		func(tx *gorm.DB) *gorm.DB { return tx.Limit(limit) },
	)
	if err != nil {
		zap.L().Error("failed to list transactions", zap.Error(err))
		return nil, errutil.Internal("failed to list transactions", err)
	}

	out := make([]*TransactionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToView())
	}
	return out, nil
}
