package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltydesk/pkg/db/option"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockTenantRepository struct {
	findOneFn func(ctx context.Context, query *Tenant, opts ...option.QueryOption) (*Tenant, error)
	updateFn  func(ctx context.Context, id string, values any) error
}

func (m *mockTenantRepository) WithTrx(tx *gorm.DB) repository.Repository[Tenant] {
	return m
}

func (m *mockTenantRepository) Find(ctx context.Context, query *Tenant, opts ...option.QueryOption) ([]*Tenant, error) {
	return nil, nil
}

func (m *mockTenantRepository) FindOne(ctx context.Context, query *Tenant, opts ...option.QueryOption) (*Tenant, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *mockTenantRepository) Create(context.Context, *Tenant) error { return nil }

func (m *mockTenantRepository) Update(ctx context.Context, id string, values any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, values)
	}
	return nil
}

func (m *mockTenantRepository) BatchCreate(context.Context, []*Tenant) error  { return nil }
func (m *mockTenantRepository) BatchUpdate(context.Context, []*Tenant) error  { return nil }
func (m *mockTenantRepository) Count(context.Context, *Tenant) (int64, error) { return 0, nil }

func TestGetSuccess(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findOneFn = func(ctx context.Context, q *Tenant, _ ...option.QueryOption) (*Tenant, error) {
		require.Equal(t, "tenant-1", q.ID)
		return &Tenant{ID: "tenant-1", Name: "Acme Diner", Slug: "acme-diner", Status: Active}, nil
	}
	svc := &Service{repo: repo}

	view, err := svc.Get(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, "Acme Diner", view.Name)
}

func TestGetNotFound(t *testing.T) {
	svc := &Service{repo: &mockTenantRepository{}}

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestGetRepositoryError(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findOneFn = func(context.Context, *Tenant, ...option.QueryOption) (*Tenant, error) {
		return nil, errors.New("boom")
	}
	svc := &Service{repo: repo}

	_, err := svc.Get(context.Background(), "tenant-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusInternal))
}

func TestUpdateSettingsPartial(t *testing.T) {
	var captured map[string]any
	repo := &mockTenantRepository{}
	repo.findOneFn = func(context.Context, *Tenant, ...option.QueryOption) (*Tenant, error) {
		return &Tenant{ID: "tenant-1", Name: "Acme Diner", PointsPerCurrency: 1}, nil
	}
	repo.updateFn = func(_ context.Context, id string, values any) error {
		require.Equal(t, "tenant-1", id)
		captured = values.(map[string]any)
		return nil
	}
	svc := &Service{repo: repo}

	points := int64(2)
	_, err := svc.UpdateSettings(context.Background(), "tenant-1", UpdateSettingsParams{
		PointsPerCurrency: &points,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"points_per_currency": int64(2)}, captured)
}

func TestUpdateSettingsValidation(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findOneFn = func(context.Context, *Tenant, ...option.QueryOption) (*Tenant, error) {
		return &Tenant{ID: "tenant-1"}, nil
	}
	svc := &Service{repo: repo}

	zero := int64(0)
	_, err := svc.UpdateSettings(context.Background(), "tenant-1", UpdateSettingsParams{
		PointsPerCurrency: &zero,
	})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))

	negative := int64(-1)
	_, err = svc.UpdateSettings(context.Background(), "tenant-1", UpdateSettingsParams{
		WelcomeBonus: &negative,
	})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}
