package onboarding

import (
	"context"
	"fmt"
	"strings"

	"loyaltydesk/pkg/config"
	"loyaltydesk/pkg/db/option"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/services/customer"
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/reward"
	"loyaltydesk/services/tenant"
	"loyaltydesk/services/verification"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the public wallet surface: everything here is reachable without
// a staff session, scoped by the restaurant named in the URL and, for
// customer data, a verified phone number.
type Service struct {
	config       *config.Config
	customers    *customer.Service
	loyalty      *loyalty.Service
	rewards      *reward.Service
	verification *verification.Service

	tenants    repository.Repository[tenant.Tenant]
	rewardRows repository.Repository[reward.Reward]
}

type ServiceParams struct {
	fx.In
	DB           *gorm.DB
	Config       *config.Config
	Customers    *customer.Service
	Loyalty      *loyalty.Service
	Rewards      *reward.Service
	Verification *verification.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		config:       p.Config,
		customers:    p.Customers,
		loyalty:      p.Loyalty,
		rewards:      p.Rewards,
		verification: p.Verification,

		tenants:    repository.ProvideStore[tenant.Tenant](p.DB),
		rewardRows: repository.ProvideStore[reward.Reward](p.DB),
	}
}

// Link is the URL a restaurant prints on its QR code. Scanning it lands the
// customer on the wallet page for that restaurant.
func (s *Service) Link(tenantID string) string {
	return fmt.Sprintf("%s/wallet?restaurant=%s", strings.TrimRight(s.config.Origin, "/"), tenantID)
}

// ResolveTenant accepts either a slug or a raw id, the two forms a wallet URL
// circulates in. Suspended and archived restaurants are invisible here.
func (s *Service) ResolveTenant(ctx context.Context, ref string) (*tenant.Tenant, error) {
	t, err := s.tenants.FindOne(ctx, &tenant.Tenant{Slug: ref})
	if err != nil {
		return nil, errutil.Internal("failed to resolve restaurant", err)
	}
	if t == nil {
		t, err = s.tenants.FindOne(ctx, &tenant.Tenant{ID: ref})
		if err != nil {
			return nil, errutil.Internal("failed to resolve restaurant", err)
		}
	}
	if t == nil || t.Status != tenant.Active {
		return nil, errutil.NotFound("restaurant not found", nil)
	}
	return t, nil
}

type SignupParams struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Signup enrolls a customer from the wallet page. The phone must pass code
// verification first; enrollment then runs through the same path the manager
// console uses, welcome bonus included.
func (s *Service) Signup(ctx context.Context, tenantRef string, p SignupParams) (*customer.View, error) {
	t, err := s.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return nil, err
	}

	if err := s.verification.CheckCode(ctx, t.ID, p.Phone, p.Code); err != nil {
		return nil, err
	}

	view, err := s.customers.Create(ctx, t.ID, customer.CreateParams{
		Email: p.Email,
		Name:  p.Name,
		Phone: p.Phone,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("customer signed up",
		zap.String("tenant_id", t.ID),
		zap.String("customer_id", view.ID),
	)
	return view, nil
}

// Wallet builds the customer's wallet: balance, tier standing, recent
// activity, and the reward catalog annotated with live eligibility.
func (s *Service) Wallet(ctx context.Context, tenantRef, phone string) (*WalletView, error) {
	t, err := s.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return nil, err
	}

	cust, err := s.customers.FindByPhone(ctx, t.ID, phone)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, errutil.NotFound("not enrolled with this restaurant", nil)
	}

	activity, err := s.loyalty.ListTransactions(ctx, t.ID, cust.ID, 10)
	if err != nil {
		return nil, err
	}

	redemptions, err := s.rewards.ListRedemptions(ctx, t.ID, cust.ID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.rewardRows.Find(ctx, &reward.Reward{TenantID: t.ID},
		option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: true}),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "points_required",
			OrderBy: "asc",
			Allow:   map[string]bool{"points_required": true},
		}),
	)
	if err != nil {
		return nil, errutil.Internal("failed to load rewards", err)
	}

	walletRewards := make([]*WalletReward, 0, len(catalog))
	for _, row := range catalog {
		walletRewards = append(walletRewards, &WalletReward{
			View:     row.ToView(),
			Eligible: s.rewards.Eligible(cust, row),
		})
	}

	return &WalletView{
		Restaurant: RestaurantView{
			ID:       t.ID,
			Name:     t.Name,
			Currency: t.Currency,
		},
		Name:         cust.Name,
		Code:         cust.Code,
		TotalPoints:  cust.TotalPoints,
		CurrentTier:  cust.CurrentTier,
		TierProgress: cust.TierProgress,
		Activity:     activity,
		Rewards:      walletRewards,
		Redemptions:  redemptions,
	}, nil
}

// Redeem lets a customer claim a reward from their wallet. Knowing an
// enrollee's phone number is not enough to spend their points; the phone must
// pass code verification here just as it does on signup. The same validator
// then runs whether the request comes from here or the staff console.
func (s *Service) Redeem(ctx context.Context, tenantRef, phone, code, rewardID string) (*reward.RedemptionView, error) {
	t, err := s.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return nil, err
	}

	if err := s.verification.CheckCode(ctx, t.ID, phone, code); err != nil {
		return nil, err
	}

	cust, err := s.customers.FindByPhone(ctx, t.ID, phone)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, errutil.NotFound("not enrolled with this restaurant", nil)
	}

	return s.rewards.Redeem(ctx, t.ID, cust.ID, rewardID)
}

// SendCode issues a verification code for signup or wallet access.
func (s *Service) SendCode(ctx context.Context, tenantRef, phone string) error {
	t, err := s.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return err
	}
	return s.verification.SendCode(ctx, t.ID, phone)
}

// VerifyCode lets the wallet page validate a code before submitting the
// signup form. Signup re-checks on its own; passing here is not a session.
func (s *Service) VerifyCode(ctx context.Context, tenantRef, phone, code string) error {
	t, err := s.ResolveTenant(ctx, tenantRef)
	if err != nil {
		return err
	}
	return s.verification.CheckCode(ctx, t.ID, phone, code)
}
