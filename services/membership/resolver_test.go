package membership

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltydesk/internal/session"
	"loyaltydesk/pkg/config"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/reward"
	"loyaltydesk/services/tenant"
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

type fakeFlags struct {
	open bool
}

func (f *fakeFlags) OpenRegistration(context.Context, string) bool { return f.open }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Loyalty.Currency = "USD"
	cfg.Loyalty.PointsPerCurrency = 1
	cfg.Loyalty.WelcomeBonus = 100
	cfg.Loyalty.ReferralBonus = 50
	return cfg
}

func newTestService(t *testing.T, open bool) (*Service, *gorm.DB, *fakeEnqueuer) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&tenant.Tenant{}, &Staff{}, &loyalty.TierLevel{}, &reward.Reward{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enq := &fakeEnqueuer{}
	svc := &Service{
		db:      db,
		node:    node,
		config:  testConfig(),
		flags:   &fakeFlags{open: open},
		asynq:   enq,
		staff:   repository.ProvideStore[Staff](db),
		tenants: repository.ProvideStore[tenant.Tenant](db),
	}
	return svc, db, enq
}

func TestResolveProvisionsRestaurantOnFirstSignIn(t *testing.T) {
	svc, db, enq := newTestService(t, true)

	identity := session.Identity{ID: "idp-1", Email: "mario@trattoria.test", Name: "Mario"}
	sess, err := svc.Resolve(context.Background(), identity)
	require.NoError(t, err)
	require.Equal(t, session.RoleAdmin, sess.Role)
	require.NotEmpty(t, sess.TenantID)
	require.NotEmpty(t, sess.MembershipID)

	var tnt tenant.Tenant
	require.NoError(t, db.First(&tnt, "id = ?", sess.TenantID).Error)
	require.Equal(t, "mario@trattoria.test", tnt.ContactEmail)
	require.Equal(t, tenant.Active, tnt.Status)
	require.EqualValues(t, 100, tnt.WelcomeBonus)

	var tiers []loyalty.TierLevel
	require.NoError(t, db.Where("tenant_id = ?", tnt.ID).Order("sort_order").Find(&tiers).Error)
	require.Len(t, tiers, 3)
	require.EqualValues(t, 0, tiers[0].MinPoints)
	require.EqualValues(t, 500, tiers[1].MinPoints)
	require.EqualValues(t, 1000, tiers[2].MinPoints)

	var rewards int64
	require.NoError(t, db.Model(&reward.Reward{}).Where("tenant_id = ?", tnt.ID).Count(&rewards).Error)
	require.EqualValues(t, 3, rewards)

	var st Staff
	require.NoError(t, db.First(&st, "id = ?", sess.MembershipID).Error)
	require.NotNil(t, st.IdentityID)
	require.Equal(t, "idp-1", *st.IdentityID)

	require.Len(t, enq.tasks, 1)
}

func TestResolveIsIdempotent(t *testing.T) {
	svc, db, _ := newTestService(t, true)

	identity := session.Identity{ID: "idp-1", Email: "mario@trattoria.test", Name: "Mario"}
	first, err := svc.Resolve(context.Background(), identity)
	require.NoError(t, err)

	second, err := svc.Resolve(context.Background(), identity)
	require.NoError(t, err)
	require.Equal(t, first.TenantID, second.TenantID)
	require.Equal(t, first.MembershipID, second.MembershipID)

	var tenants int64
	require.NoError(t, db.Model(&tenant.Tenant{}).Count(&tenants).Error)
	require.EqualValues(t, 1, tenants)
}

func TestResolveClaimsUnlinkedMembershipByEmail(t *testing.T) {
	svc, db, _ := newTestService(t, true)

	require.NoError(t, db.Create(&tenant.Tenant{
		ID: "tenant-1", Name: "Existing", Slug: "existing",
		ContactEmail: "owner@existing.test", Status: tenant.Active,
	}).Error)
	require.NoError(t, db.Create(&Staff{
		ID: "staff-1", TenantID: "tenant-1",
		Email: "waiter@existing.test", Role: session.RoleStaff, Active: true,
	}).Error)

	sess, err := svc.Resolve(context.Background(), session.Identity{
		ID: "idp-9", Email: "waiter@existing.test", Name: "Luigi",
	})
	require.NoError(t, err)
	require.Equal(t, "tenant-1", sess.TenantID)
	require.Equal(t, "staff-1", sess.MembershipID)
	require.Equal(t, session.RoleStaff, sess.Role)

	var st Staff
	require.NoError(t, db.First(&st, "id = ?", "staff-1").Error)
	require.NotNil(t, st.IdentityID)
	require.Equal(t, "idp-9", *st.IdentityID)

	// Claiming an invite does not spin up a new restaurant.
	var tenants int64
	require.NoError(t, db.Model(&tenant.Tenant{}).Count(&tenants).Error)
	require.EqualValues(t, 1, tenants)
}

func TestResolveRejectsEmailClaimedByAnotherIdentity(t *testing.T) {
	svc, db, _ := newTestService(t, true)

	other := "idp-other"
	require.NoError(t, db.Create(&Staff{
		ID: "staff-1", TenantID: "tenant-1", IdentityID: &other,
		Email: "owner@taken.test", Role: session.RoleAdmin, Active: true,
	}).Error)

	_, err := svc.Resolve(context.Background(), session.Identity{
		ID: "idp-new", Email: "owner@taken.test",
	})
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusUnauthorized))
}

func TestResolveClosedRegistration(t *testing.T) {
	svc, db, _ := newTestService(t, false)

	_, err := svc.Resolve(context.Background(), session.Identity{
		ID: "idp-1", Email: "stranger@nowhere.test",
	})
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusUnauthorized))

	var tenants int64
	require.NoError(t, db.Model(&tenant.Tenant{}).Count(&tenants).Error)
	require.EqualValues(t, 0, tenants)
}

func TestResolveDeactivatedMembership(t *testing.T) {
	svc, db, _ := newTestService(t, true)

	id := "idp-1"
	require.NoError(t, db.Create(&Staff{
		ID: "staff-1", TenantID: "tenant-1", IdentityID: &id,
		Email: "fired@existing.test", Role: session.RoleStaff, Active: false,
	}).Error)

	// The inactive flag must survive the insert; a column default that
	// overrides a false value would hand the fired account a session.
	var st Staff
	require.NoError(t, db.First(&st, "id = ?", "staff-1").Error)
	require.False(t, st.Active)

	_, err := svc.Resolve(context.Background(), session.Identity{
		ID: "idp-1", Email: "fired@existing.test",
	})
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusUnauthorized))
}

func TestResolveMalformedEmailDoesNotProvision(t *testing.T) {
	svc, db, _ := newTestService(t, true)

	_, err := svc.Resolve(context.Background(), session.Identity{
		ID: "idp-x", Email: "no-at-sign",
	})
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusUnauthorized))

	var tenants int64
	require.NoError(t, db.Model(&tenant.Tenant{}).Count(&tenants).Error)
	require.EqualValues(t, 0, tenants)
}

func TestResolveIncompleteIdentity(t *testing.T) {
	svc, _, _ := newTestService(t, true)

	_, err := svc.Resolve(context.Background(), session.Identity{Email: "a@b.test"})
	require.True(t, errutil.HasStatus(err, errutil.StatusUnauthorized))

	_, err = svc.Resolve(context.Background(), session.Identity{ID: "idp-1"})
	require.True(t, errutil.HasStatus(err, errutil.StatusUnauthorized))
}
