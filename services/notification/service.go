package notification

import (
	"context"

	"loyaltydesk/pkg/db/option"
	"loyaltydesk/pkg/db/pagination"
	"loyaltydesk/pkg/errutil"
	"loyaltydesk/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Notification]
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
		repo: repository.ProvideStore[Notification](p.DB),
	}
}

func (s *Service) List(ctx context.Context, tenantID string, page pagination.Pagination) ([]*View, *pagination.PageInfo, error) {
	rows, err := s.repo.Find(ctx, &Notification{TenantID: tenantID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.ApplyPagination(page),
	)
	if err != nil {
		zap.L().Error("failed to list notifications", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list notifications", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, info := pagination.BuildCursorPageInfo(rows, limit, func(n *Notification) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: n.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999Z"),
			ID:        n.ID,
		})
		return cursor
	})

	out := make([]*View, 0, len(rows))
	for _, n := range rows {
		out = append(out, n.ToView())
	}

	return out, info, nil
}
