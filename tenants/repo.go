package tenants

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fixdesk/fixdesk/backend"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

type Repo interface {
	Get(ctx context.Context, accessToken, tenantID string) (*Tenant, error)
}

// BackendRepo reads tenants through the hosted backend's data endpoints.
type BackendRepo struct {
	data *backend.DataClient
}

var _ Repo = (*BackendRepo)(nil)

func NewBackendRepo(data *backend.DataClient) *BackendRepo {
	return &BackendRepo{data: data}
}

func (r *BackendRepo) Get(ctx context.Context, accessToken, tenantID string) (*Tenant, error) {
	var rows []Tenant
	err := r.data.From("tenants").
		Eq("id", tenantID).
		Limit(1).
		Get(ctx, accessToken, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "[BackendRepo.Get]")
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(apperrors.ErrTenantNotFound, "tenant %s", tenantID)
	}
	return &rows[0], nil
}
