package customer

import (
	"context"
	"strings"
	"time"

	"loyaltydesk/pkg/db/option"
	"loyaltydesk/pkg/db/pagination"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/pkg/sequence"
	"loyaltydesk/services/tenant"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// PointGranter awards the signup bonus after enrollment. The loyalty service
// satisfies it; the indirection keeps the accrual ledger out of this package.
type PointGranter interface {
	GrantSignupBonus(ctx context.Context, tenantID, customerID string, points int64) error
}

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	seq     sequence.Generator
	granter PointGranter

	customers repository.Repository[Customer]
	tenants   repository.Repository[tenant.Tenant]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Seq     sequence.Generator `optional:"true"`
	Granter PointGranter
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		seq:     p.Seq,
		granter: p.Granter,

		customers: repository.ProvideStore[Customer](p.DB),
		tenants:   repository.ProvideStore[tenant.Tenant](p.DB),
	}
}

type ListParams struct {
	pagination.Pagination
	Search string `form:"q"`
}

func (s *Service) List(ctx context.Context, tenantID string, p ListParams) ([]*View, *pagination.PageInfo, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.ApplyPagination(p.Pagination),
	}
	if q := strings.TrimSpace(p.Search); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		opts = append(opts, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", pattern, pattern, pattern)
		})
	}

	rows, err := s.customers.Find(ctx, &Customer{TenantID: tenantID}, opts...)
	if err != nil {
		zap.L().Error("failed to list customers", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list customers", err)
	}

	rows, pageInfo := pagination.BuildCursorPageInfo(rows, limit, func(c *Customer) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
			ID:        c.ID,
		})
		return cursor
	})

	out := make([]*View, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToView())
	}
	return out, pageInfo, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*View, error) {
	row, err := s.customers.FindOne(ctx, &Customer{ID: id, TenantID: tenantID})
	if err != nil {
		zap.L().Error("failed to get customer", zap.Error(err))
		return nil, errutil.Internal("failed to get customer", err)
	}
	if row == nil {
		return nil, errutil.NotFound("customer not found", nil)
	}
	return row.ToView(), nil
}

type CreateParams struct {
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// Create enrolls a customer and grants the restaurant's welcome bonus. A
// second enrollment with the same email on the same restaurant is rejected,
// so the signup transaction is written at most once per customer.
func (s *Service) Create(ctx context.Context, tenantID string, p CreateParams) (*View, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" && strings.TrimSpace(p.Phone) == "" {
		return nil, errutil.ValidationFailed("email or phone is required", nil)
	}

	t, err := s.tenants.FindOne(ctx, &tenant.Tenant{ID: tenantID})
	if err != nil {
		zap.L().Error("failed to load tenant", zap.Error(err))
		return nil, errutil.Internal("failed to load settings", err)
	}
	if t == nil {
		return nil, errutil.NotFound("restaurant not found", nil)
	}

	if email != "" {
		existing, err := s.customers.FindOne(ctx, &Customer{TenantID: tenantID, Email: email})
		if err != nil {
			return nil, errutil.Internal("failed to check enrollment", err)
		}
		if existing != nil {
			return nil, errutil.ValidationFailed("customer is already enrolled", nil)
		}
	}
	if p.Phone != "" {
		existing, err := s.customers.FindOne(ctx, &Customer{TenantID: tenantID, Phone: p.Phone})
		if err != nil {
			return nil, errutil.Internal("failed to check enrollment", err)
		}
		if existing != nil {
			return nil, errutil.ValidationFailed("customer is already enrolled", nil)
		}
	}

	code := ""
	if s.seq != nil {
		if c, err := s.seq.NextCustomerCode(ctx, tenantID); err == nil {
			code = c
		}
	}

	row := &Customer{
		ID:          s.node.Generate().String(),
		TenantID:    tenantID,
		Code:        code,
		Email:       email,
		Name:        p.Name,
		Phone:       p.Phone,
		DateOfBirth: p.DateOfBirth,
		CurrentTier: "bronze",
		Active:      true,
	}

	if err := s.customers.Create(ctx, row); err != nil {
		zap.L().Error("failed to create customer", zap.Error(err))
		return nil, errutil.Internal("failed to create customer", err)
	}

	if t.WelcomeBonus > 0 {
		if err := s.granter.GrantSignupBonus(ctx, tenantID, row.ID, t.WelcomeBonus); err != nil {
			zap.L().Error("failed to grant welcome bonus",
				zap.String("customer_id", row.ID), zap.Error(err))
			// Undo the enrollment: a success response must mean exactly one
			// signup transaction exists, and a retry must not trip the
			// duplicate check.
			if derr := s.db.WithContext(ctx).Delete(&Customer{}, "id = ?", row.ID).Error; derr != nil {
				zap.L().Error("failed to undo enrollment",
					zap.String("customer_id", row.ID), zap.Error(derr))
			}
			return nil, err
		}

		row, err = s.customers.FindOne(ctx, &Customer{ID: row.ID})
		if err != nil || row == nil {
			return nil, errutil.Internal("failed to reload customer", err)
		}
	}

	return row.ToView(), nil
}

// FindByPhone supports the wallet surface, where the customer is identified
// by a verified phone number rather than a session.
func (s *Service) FindByPhone(ctx context.Context, tenantID, phone string) (*Customer, error) {
	row, err := s.customers.FindOne(ctx, &Customer{TenantID: tenantID, Phone: phone})
	if err != nil {
		return nil, errutil.Internal("failed to look up customer", err)
	}
	return row, nil
}

// Stats fans the dashboard aggregates out concurrently. The ledger and
// redemption tables are addressed by name to keep this package independent
// of theirs.
func (s *Service) Stats(ctx context.Context, tenantID string) (*Stats, error) {
	var stats Stats

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&Customer{}).
			Where("tenant_id = ?", tenantID).
			Count(&stats.Customers).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&Customer{}).
			Where("tenant_id = ? AND active = ?", tenantID, true).
			Count(&stats.ActiveCustomers).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&Customer{}).
			Where("tenant_id = ?", tenantID).
			Select("COALESCE(SUM(total_points), 0)").
			Scan(&stats.PointsOutstanding).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Table("point_transactions").
			Where("tenant_id = ?", tenantID).
			Select("COALESCE(SUM(point_delta), 0)").
			Scan(&stats.PointsIssued).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Table("redemptions").
			Where("tenant_id = ?", tenantID).
			Count(&stats.Redemptions).Error
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("failed to compute stats", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to compute stats", err)
	}

	return &stats, nil
}
