package onboarding

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltydesk/pkg/config"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/services/customer"
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/reward"
	"loyaltydesk/services/tenant"
	"loyaltydesk/services/testutil"
	"loyaltydesk/services/verification"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return nil, nil
}

// newTestService assembles the real service stack end to end; only redis and
// the task queue are faked out.
func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&tenant.Tenant{}, &customer.Customer{},
		&loyalty.PointTransaction{}, &reward.Reward{}, &reward.Redemption{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{Origin: "https://app.example.test"}
	enq := &fakeEnqueuer{}

	loySvc := loyalty.NewService(loyalty.ServiceParams{DB: db, Node: node, Asynq: enq})
	custSvc := customer.NewService(customer.ServiceParams{DB: db, Node: node, Granter: loySvc})
	rewSvc := reward.NewService(reward.ServiceParams{DB: db, Node: node, Asynq: enq})
	verSvc := verification.NewService(verification.ServiceParams{
		Config: cfg,
		Redis:  goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}),
		Sender: verification.NewDemoSender(),
	})

	svc := &Service{
		config:       cfg,
		customers:    custSvc,
		loyalty:      loySvc,
		rewards:      rewSvc,
		verification: verSvc,
		tenants:      repository.ProvideStore[tenant.Tenant](db),
		rewardRows:   repository.ProvideStore[reward.Reward](db),
	}
	return svc, db
}

func seedTenant(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&tenant.Tenant{
		ID: "tenant-1", Name: "Acme Diner", Slug: "acme-diner",
		ContactEmail: "owner@acme.test", Status: tenant.Active,
		Currency: "USD", PointsPerCurrency: 1, WelcomeBonus: 100,
	}).Error)
}

func TestLink(t *testing.T) {
	svc, _ := newTestService(t)
	require.Equal(t, "https://app.example.test/wallet?restaurant=tenant-1", svc.Link("tenant-1"))

	svc.config.Origin = "https://app.example.test/"
	require.Equal(t, "https://app.example.test/wallet?restaurant=tenant-1", svc.Link("tenant-1"))
}

func TestResolveTenantBySlugOrID(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	bySlug, err := svc.ResolveTenant(context.Background(), "acme-diner")
	require.NoError(t, err)
	require.Equal(t, "tenant-1", bySlug.ID)

	byID, err := svc.ResolveTenant(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, "acme-diner", byID.Slug)

	_, err = svc.ResolveTenant(context.Background(), "nowhere")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestResolveTenantHidesSuspended(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&tenant.Tenant{
		ID: "tenant-1", Name: "Closed Down", Slug: "closed-down",
		ContactEmail: "owner@closed.test", Status: tenant.Suspended,
	}).Error)

	_, err := svc.ResolveTenant(context.Background(), "closed-down")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestSignupWithVerifiedPhone(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	view, err := svc.Signup(context.Background(), "acme-diner", SignupParams{
		Phone: "+15550001111",
		Code:  "4242",
		Name:  "Ada",
		Email: "ada@example.test",
	})
	require.NoError(t, err)
	require.EqualValues(t, 100, view.TotalPoints) // welcome bonus applied
	require.Equal(t, "bronze", view.CurrentTier)
}

func TestSignupRejectsMalformedCode(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	_, err := svc.Signup(context.Background(), "acme-diner", SignupParams{
		Phone: "+15550001111",
		Code:  "12",
	})
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}

func TestSignupDuplicatePhone(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	params := SignupParams{Phone: "+15550001111", Code: "4242", Name: "Ada"}
	_, err := svc.Signup(context.Background(), "acme-diner", params)
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), "acme-diner", params)
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}

func TestWalletShowsBalanceAndEligibility(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	require.NoError(t, db.Create(&reward.Reward{
		ID: "rew-cheap", TenantID: "tenant-1", Name: "Free Drink",
		PointsRequired: 50, MinTier: "bronze", Active: true,
	}).Error)
	require.NoError(t, db.Create(&reward.Reward{
		ID: "rew-dear", TenantID: "tenant-1", Name: "Tasting Menu",
		PointsRequired: 1200, MinTier: "gold", Active: true,
	}).Error)

	_, err := svc.Signup(context.Background(), "acme-diner", SignupParams{
		Phone: "+15550001111", Code: "4242", Name: "Ada",
	})
	require.NoError(t, err)

	wallet, err := svc.Wallet(context.Background(), "acme-diner", "+15550001111")
	require.NoError(t, err)
	require.Equal(t, "Acme Diner", wallet.Restaurant.Name)
	require.EqualValues(t, 100, wallet.TotalPoints)
	require.Equal(t, "bronze", wallet.CurrentTier)
	require.Len(t, wallet.Activity, 1) // the signup bonus

	require.Len(t, wallet.Rewards, 2)
	byID := map[string]bool{}
	for _, r := range wallet.Rewards {
		byID[r.ID] = r.Eligible
	}
	require.True(t, byID["rew-cheap"])
	require.False(t, byID["rew-dear"])
}

func TestWalletNotEnrolled(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	_, err := svc.Wallet(context.Background(), "acme-diner", "+15559998888")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestWalletRedeem(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	require.NoError(t, db.Create(&reward.Reward{
		ID: "rew-cheap", TenantID: "tenant-1", Name: "Free Drink",
		PointsRequired: 50, MinTier: "bronze", Active: true,
	}).Error)

	_, err := svc.Signup(context.Background(), "acme-diner", SignupParams{
		Phone: "+15550001111", Code: "4242", Name: "Ada",
	})
	require.NoError(t, err)

	view, err := svc.Redeem(context.Background(), "acme-diner", "+15550001111", "4242", "rew-cheap")
	require.NoError(t, err)
	require.Equal(t, "pending", view.Status)

	wallet, err := svc.Wallet(context.Background(), "acme-diner", "+15550001111")
	require.NoError(t, err)
	require.EqualValues(t, 50, wallet.TotalPoints)
	require.Len(t, wallet.Redemptions, 1)
}

func TestWalletRedeemRequiresVerifiedPhone(t *testing.T) {
	svc, db := newTestService(t)
	seedTenant(t, db)

	require.NoError(t, db.Create(&reward.Reward{
		ID: "rew-cheap", TenantID: "tenant-1", Name: "Free Drink",
		PointsRequired: 50, MinTier: "bronze", Active: true,
	}).Error)

	_, err := svc.Signup(context.Background(), "acme-diner", SignupParams{
		Phone: "+15550001111", Code: "4242", Name: "Ada",
	})
	require.NoError(t, err)

	// Knowing the phone number alone must not spend the points.
	_, err = svc.Redeem(context.Background(), "acme-diner", "+15550001111", "", "rew-cheap")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))

	wallet, err := svc.Wallet(context.Background(), "acme-diner", "+15550001111")
	require.NoError(t, err)
	require.EqualValues(t, 100, wallet.TotalPoints)
	require.Empty(t, wallet.Redemptions)
}
