package reward

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/services/customer"
	"loyaltydesk/services/testutil"
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

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeEnqueuer) {
	t.Helper()

	db := testutil.NewTestDB(t, &customer.Customer{}, &Reward{}, &Redemption{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enq := &fakeEnqueuer{}
	svc := &Service{
		db:          db,
		node:        node,
		asynq:       enq,
		rewards:     repository.ProvideStore[Reward](db),
		redemptions: repository.ProvideStore[Redemption](db),
		customers:   repository.ProvideStore[customer.Customer](db),
	}
	return svc, db, enq
}

func TestRedeemHappyPath(t *testing.T) {
	svc, db, enq := newTestService(t)

	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1", Name: "Ada",
		TotalPoints: 300, LifetimePoints: 600, CurrentTier: "silver", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Free Dessert",
		PointsRequired: 250, MinTier: "silver", Active: true,
	}).Error)

	view, err := svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.NoError(t, err)
	require.Equal(t, "rew-1", view.RewardID)
	require.EqualValues(t, 250, view.PointsUsed)
	require.Equal(t, "pending", view.Status)

	var cust customer.Customer
	require.NoError(t, db.First(&cust, "id = ?", "cust-1").Error)
	require.EqualValues(t, 50, cust.TotalPoints)
	require.EqualValues(t, 600, cust.LifetimePoints) // redemption never touches lifetime

	var rew Reward
	require.NoError(t, db.First(&rew, "id = ?", "rew-1").Error)
	require.EqualValues(t, 1, rew.TotalRedeemed)

	require.Len(t, enq.tasks, 1)
}

func TestRedeemInsufficientPointsReportsShortfall(t *testing.T) {
	svc, db, _ := newTestService(t)

	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1",
		TotalPoints: 100, LifetimePoints: 100, CurrentTier: "bronze", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Free Drink",
		PointsRequired: 150, MinTier: "bronze", Active: true,
	}).Error)

	_, err := svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
	require.Contains(t, err.Error(), "50 more required")

	var cust customer.Customer
	require.NoError(t, db.First(&cust, "id = ?", "cust-1").Error)
	require.EqualValues(t, 100, cust.TotalPoints) // rejection leaves no writes
}

func TestRedeemTierTooLow(t *testing.T) {
	svc, db, _ := newTestService(t)

	// Plenty of spendable points but lifetime keeps the customer bronze.
	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1",
		TotalPoints: 400, LifetimePoints: 400, CurrentTier: "bronze", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Free Dessert",
		PointsRequired: 250, MinTier: "silver", Active: true,
	}).Error)

	_, err := svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
	require.Contains(t, err.Error(), "requires silver tier")
}

func TestRedeemAfterEarningMoreSucceeds(t *testing.T) {
	svc, db, _ := newTestService(t)

	// Same customer after further spending: lifetime 600 makes them silver.
	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1",
		TotalPoints: 300, LifetimePoints: 600, CurrentTier: "silver", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Free Dessert",
		PointsRequired: 250, MinTier: "silver", Active: true,
	}).Error)

	view, err := svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.NoError(t, err)
	require.Equal(t, "pending", view.Status)

	var cust customer.Customer
	require.NoError(t, db.First(&cust, "id = ?", "cust-1").Error)
	require.EqualValues(t, 50, cust.TotalPoints)
}

func TestRedeemExhaustedCapacity(t *testing.T) {
	svc, db, _ := newTestService(t)

	one := int64(1)
	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1",
		TotalPoints: 1000, LifetimePoints: 1000, CurrentTier: "gold", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Tasting Menu",
		PointsRequired: 100, MinTier: "bronze", TotalAvailable: &one, Active: true,
	}).Error)

	_, err := svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.NoError(t, err)

	// Capacity one: the second attempt must fail and leave the balance alone.
	_, err = svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusUnprocessableEntity))

	var cust customer.Customer
	require.NoError(t, db.First(&cust, "id = ?", "cust-1").Error)
	require.EqualValues(t, 900, cust.TotalPoints)

	var rew Reward
	require.NoError(t, db.First(&rew, "id = ?", "rew-1").Error)
	require.EqualValues(t, 1, rew.TotalRedeemed)

	var count int64
	require.NoError(t, db.Model(&Redemption{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRedeemCapacityOneConcurrentRequests(t *testing.T) {
	svc, db, _ := newTestService(t)

	one := int64(1)
	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1",
		TotalPoints: 1000, LifetimePoints: 1000, CurrentTier: "gold", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Tasting Menu",
		PointsRequired: 100, MinTier: "bronze", TotalAvailable: &one, Active: true,
	}).Error)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
		}(i)
	}
	wg.Wait()

	successes := 0
	var loser error
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			loser = err
		}
	}
	require.Equal(t, 1, successes)
	require.True(t, errutil.HasStatus(loser, errutil.StatusUnprocessableEntity))

	var cust customer.Customer
	require.NoError(t, db.First(&cust, "id = ?", "cust-1").Error)
	require.EqualValues(t, 900, cust.TotalPoints)

	var rew Reward
	require.NoError(t, db.First(&rew, "id = ?", "rew-1").Error)
	require.EqualValues(t, 1, rew.TotalRedeemed)

	var count int64
	require.NoError(t, db.Model(&Redemption{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRedeemExpiredReward(t *testing.T) {
	svc, db, _ := newTestService(t)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1",
		TotalPoints: 500, LifetimePoints: 500, CurrentTier: "silver", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Old Promo",
		PointsRequired: 100, MinTier: "bronze", Active: true, ExpiresAt: &past,
	}).Error)

	_, err := svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusUnprocessableEntity))
}

func TestRedeemUnknownCustomerCheckedFirst(t *testing.T) {
	svc, db, _ := newTestService(t)

	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Free Drink",
		PointsRequired: 150, MinTier: "bronze", Active: true,
	}).Error)

	_, err := svc.Redeem(context.Background(), "tenant-1", "missing", "rew-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
	require.Contains(t, err.Error(), "customer")
}

func TestRedeemInactiveRewardIsNotFound(t *testing.T) {
	svc, db, _ := newTestService(t)

	require.NoError(t, db.Create(&customer.Customer{
		ID: "cust-1", TenantID: "tenant-1",
		TotalPoints: 500, LifetimePoints: 500, CurrentTier: "silver", Active: true,
	}).Error)
	require.NoError(t, db.Create(&Reward{
		ID: "rew-1", TenantID: "tenant-1", Name: "Retired",
		PointsRequired: 100, MinTier: "bronze", Active: false,
	}).Error)

	var rew Reward
	require.NoError(t, db.First(&rew, "id = ?", "rew-1").Error)
	require.False(t, rew.Active) // retired stays retired after the insert

	_, err := svc.Redeem(context.Background(), "tenant-1", "cust-1", "rew-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestCreateRewardValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "tenant-1", CreateParams{PointsRequired: 100})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))

	_, err = svc.Create(context.Background(), "tenant-1", CreateParams{Name: "X", PointsRequired: 0})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))

	_, err = svc.Create(context.Background(), "tenant-1", CreateParams{
		Name: "X", PointsRequired: 100, MinTier: "platinum",
	})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}

func TestEligibleMirrorsRedeemPreconditions(t *testing.T) {
	svc, _, _ := newTestService(t)

	cust := &customer.Customer{TotalPoints: 300, LifetimePoints: 600}
	rew := &Reward{PointsRequired: 250, MinTier: "silver", Active: true}
	require.True(t, svc.Eligible(cust, rew))

	require.False(t, svc.Eligible(&customer.Customer{TotalPoints: 100, LifetimePoints: 600}, rew))
	require.False(t, svc.Eligible(&customer.Customer{TotalPoints: 300, LifetimePoints: 400}, rew))

	one := int64(1)
	exhausted := &Reward{PointsRequired: 250, MinTier: "silver", Active: true, TotalAvailable: &one, TotalRedeemed: 1}
	require.False(t, svc.Eligible(cust, exhausted))
}
