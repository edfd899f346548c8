package audit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tenantkit/internal/types"
)

// Store is the read side of the audit repository.
type Store interface {
	List(ctx context.Context, orgID string, limit, offset int) ([]*types.AuditLogEntry, error)
	Count(ctx context.Context, orgID string) (int, error)
}

// Reader pages through an organization's audit trail.
type Reader struct {
	store Store
}

func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

// List returns one page, newest first. The row count and the page are
// fetched concurrently.
func (r *Reader) List(ctx context.Context, orgID string, params types.PageParams) (*types.AuditLogPage, error) {
	params = types.NewPageParams(params.Page, params.PageSize)

	var (
		logs  []*types.AuditLogEntry
		total int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		logs, err = r.store.List(gCtx, orgID, params.PageSize, params.Offset())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = r.store.Count(gCtx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if logs == nil {
		logs = []*types.AuditLogEntry{}
	}
	return &types.AuditLogPage{
		Logs:      logs,
		Page:      params.Page,
		PageSize:  params.PageSize,
		Total:     total,
		PageCount: types.PageCount(total, params.PageSize),
	}, nil
}
