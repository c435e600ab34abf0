package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loyaltydesk/internal/session"
	"loyaltydesk/pkg/config"
	"loyaltydesk/pkg/db"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/featureflags"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/pkg/sequence"
	"loyaltydesk/pkg/task"
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/notification"
	"loyaltydesk/services/reward"
	"loyaltydesk/services/tenant"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	seq    sequence.Generator
	config *config.Config
	flags  featureflags.FeatureFlag
	asynq  task.Enqueuer

	staff   repository.Repository[Staff]
	tenants repository.Repository[tenant.Tenant]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Seq    sequence.Generator `optional:"true"`
	Config *config.Config
	Flags  featureflags.FeatureFlag `optional:"true"`
	Asynq  task.Enqueuer
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		seq:    p.Seq,
		config: p.Config,
		flags:  p.Flags,
		asynq:  p.Asynq,

		staff:   repository.ProvideStore[Staff](p.DB),
		tenants: repository.ProvideStore[tenant.Tenant](p.DB),
	}
}

// Resolve maps an authenticated identity to exactly one membership. The
// sequence: lookup by identity id, then claim an unlinked row by email, then,
// when registration is open, provision a fresh restaurant with the
// membership created last. Any failure leaves the caller unauthenticated;
// there is no observable partially-linked state.
//
// The whole resolution runs under a hard wall-clock deadline. Store calls
// made later in the request lifecycle are deliberately not bounded here.
func (s *Service) Resolve(ctx context.Context, identity session.Identity) (*session.Session, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if identity.ID == "" || identity.Email == "" {
		return nil, errutil.Unauthorized("identity is incomplete", nil)
	}

	timeout := s.config.Session.ResolveTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("identity_id", identity.ID),
	)

	// Two passes: a lost linking or provisioning race resolves on the retry
	// via the identity-id lookup.
	for attempt := 0; attempt < 2; attempt++ {
		st, err := s.staff.FindOne(ctx, &Staff{IdentityID: &identity.ID})
		if err != nil {
			zapLog.Error("failed to look up membership by identity", zap.Error(err))
			return nil, err
		}
		if st != nil {
			if !st.Active {
				return nil, errutil.Unauthorized("membership is deactivated", nil)
			}
			s.touchLastLogin(ctx, st.ID)
			return st.Session(identity), nil
		}

		st, err = s.findByEmail(ctx, identity.Email)
		if err != nil {
			zapLog.Error("failed to look up membership by email", zap.Error(err))
			return nil, err
		}

		if st != nil {
			if st.IdentityID != nil {
				// The email belongs to a membership already claimed by another
				// identity. Hard failure; no silent re-link.
				zapLog.Warn("membership email claimed by another identity", zap.String("membership_id", st.ID))
				return nil, errutil.Unauthorized("email is registered to another account", nil)
			}

			linked, err := s.link(ctx, st.ID, identity.ID)
			if err != nil {
				zapLog.Error("failed to link membership", zap.Error(err))
				return nil, err
			}
			if linked {
				st.IdentityID = &identity.ID
				if !st.Active {
					return nil, errutil.Unauthorized("membership is deactivated", nil)
				}
				s.touchLastLogin(ctx, st.ID)
				return st.Session(identity), nil
			}

			// Lost the linking race; retry resolves against the winner.
			continue
		}

		if s.flags != nil && !s.flags.OpenRegistration(ctx, identity.Email) {
			zapLog.Warn("no membership and registration is closed")
			return nil, errutil.Unauthorized("no membership for this account", nil)
		}

		st, err = s.provision(ctx, identity)
		if err != nil {
			if db.IsUniqueViolation(err) {
				// Concurrent bootstrap for the same identity or email won.
				continue
			}
			zapLog.Error("failed to provision restaurant", zap.Error(err))
			return nil, err
		}

		zapLog.Info("provisioned new restaurant",
			zap.String("tenant_id", st.TenantID),
			zap.String("membership_id", st.ID),
		)
		s.touchLastLogin(ctx, st.ID)
		return st.Session(identity), nil
	}

	return nil, errutil.Unauthorized("could not resolve membership", nil)
}

func (s *Service) findByEmail(ctx context.Context, email string) (*Staff, error) {
	var st Staff
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&st).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// link claims an unlinked membership. The identity-id-is-null guard makes
// the update a no-op when a concurrent request got there first.
func (s *Service) link(ctx context.Context, staffID, identityID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Staff{}).
		Where("id = ? AND identity_id IS NULL", staffID).
		Updates(map[string]any{
			"identity_id": identityID,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// provision builds the full bootstrap chain in one transaction, membership
// last. An interrupted earlier bootstrap is resumed by matching the tenant's
// contact email instead of creating a duplicate.
func (s *Service) provision(ctx context.Context, identity session.Identity) (*Staff, error) {
	email := strings.ToLower(identity.Email)
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		// The email is asserted by the fronting auth layer, but it is still
		// request input; a malformed value must not become a restaurant name.
		return nil, errutil.Unauthorized("identity email is malformed", nil)
	}

	var st *Staff

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.tenants.WithTrx(tx).FindOne(ctx, &tenant.Tenant{ContactEmail: email})
		if err != nil {
			return err
		}

		if t == nil {
			code := ""
			if s.seq != nil {
				if c, err := s.seq.NextTenantCode(ctx); err == nil {
					code = c
				}
			}

			t = &tenant.Tenant{
				ID:                s.node.Generate().String(),
				Code:              code,
				Name:              fmt.Sprintf("%s's Restaurant", local),
				Slug:              s.uniqueSlug(ctx, tx, local),
				ContactEmail:      email,
				Status:            tenant.Active,
				Currency:          s.config.Loyalty.Currency,
				PointsPerCurrency: s.config.Loyalty.PointsPerCurrency,
				WelcomeBonus:      s.config.Loyalty.WelcomeBonus,
				ReferralBonus:     s.config.Loyalty.ReferralBonus,
			}
			if err := tx.Create(t).Error; err != nil {
				return fmt.Errorf("failed to create tenant: %w", err)
			}
		}

		if err := s.seedTiers(tx, t.ID); err != nil {
			return err
		}
		if err := s.seedRewards(tx, t.ID); err != nil {
			return err
		}

		// Membership last: an interrupted bootstrap never yields a tenant
		// that is reachable but unclaimable.
		st = &Staff{
			ID:         s.node.Generate().String(),
			TenantID:   t.ID,
			IdentityID: &identity.ID,
			Email:      email,
			Name:       identity.Name,
			Role:       session.RoleAdmin,
			Active:     true,
		}
		if err := tx.Create(st).Error; err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	if _, err := s.asynq.Enqueue(notification.NewDispatchTask(notification.DispatchPayload{
		TenantID: st.TenantID,
		Kind:     notification.Welcome.String(),
		Title:    "Welcome to loyaltydesk",
		Message:  "Your restaurant is ready. Share your onboarding link to enroll customers.",
	})); err != nil {
		zap.L().Warn("failed to enqueue welcome notification", zap.Error(err))
	}

	return st, nil
}

func (s *Service) uniqueSlug(ctx context.Context, tx *gorm.DB, base string) string {
	candidate := slug.Make(base)

	existing, err := s.tenants.WithTrx(tx).FindOne(ctx, &tenant.Tenant{Slug: candidate})
	if err == nil && existing == nil {
		return candidate
	}

	return fmt.Sprintf("%s-%s", candidate, strings.ToLower(s.node.Generate().String()))
}

func (s *Service) seedTiers(tx *gorm.DB, tenantID string) error {
	var count int64
	if err := tx.Model(&loyalty.TierLevel{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	levels := []loyalty.TierLevel{
		{ID: s.node.Generate().String(), TenantID: tenantID, Name: loyalty.TierBronze.String(), MinPoints: 0, SortOrder: 0},
		{ID: s.node.Generate().String(), TenantID: tenantID, Name: loyalty.TierSilver.String(), MinPoints: loyalty.SilverThreshold, SortOrder: 1},
		{ID: s.node.Generate().String(), TenantID: tenantID, Name: loyalty.TierGold.String(), MinPoints: loyalty.GoldThreshold, SortOrder: 2},
	}

	if err := tx.Create(&levels).Error; err != nil {
		return fmt.Errorf("failed to seed tiers: %w", err)
	}
	return nil
}

func (s *Service) seedRewards(tx *gorm.DB, tenantID string) error {
	var count int64
	if err := tx.Model(&reward.Reward{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	starters := []reward.Reward{
		{
			ID: s.node.Generate().String(), TenantID: tenantID,
			Name: "Free Drink", Description: "Any drink on the house",
			PointsRequired: 150, MinTier: loyalty.TierBronze.String(), Active: true,
		},
		{
			ID: s.node.Generate().String(), TenantID: tenantID,
			Name: "Free Dessert", Description: "One dessert of your choice",
			PointsRequired: 300, MinTier: loyalty.TierSilver.String(), Active: true,
		},
		{
			ID: s.node.Generate().String(), TenantID: tenantID,
			Name: "Chef's Tasting Menu", Description: "Tasting menu for two",
			PointsRequired: 1200, MinTier: loyalty.TierGold.String(), Active: true,
		},
	}

	if err := tx.Create(&starters).Error; err != nil {
		return fmt.Errorf("failed to seed rewards: %w", err)
	}
	return nil
}

func (s *Service) touchLastLogin(ctx context.Context, staffID string) {
	if err := s.staff.Update(ctx, staffID, map[string]any{
		"last_login_at": time.Now(),
	}); err != nil {
		zap.L().Warn("failed to update last login", zap.String("membership_id", staffID), zap.Error(err))
	}
}
