package repofakes

import (
	"context"
	"sync"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/internal/utils"
	"github.com/fixdesk/fixdesk/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	lock sync.RWMutex
	byID map[string]*tenants.Tenant

	// GetErrs scripts failures: each Get consumes one error.
	GetErrs []error
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{byID: make(map[string]*tenants.Tenant)}
}

func (r *FakeTenantRepo) Add(tenant *tenants.Tenant) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.byID[tenant.ID] = tenant
}

func (r *FakeTenantRepo) Get(_ context.Context, _, tenantID string) (*tenants.Tenant, error) {
	r.lock.Lock()
	var scripted error
	if len(r.GetErrs) > 0 {
		scripted = r.GetErrs[0]
		r.GetErrs = r.GetErrs[1:]
	}
	tenant, ok := r.byID[tenantID]
	r.lock.Unlock()

	if scripted != nil {
		return nil, scripted
	}
	if !ok {
		return nil, apperrors.ErrTenantNotFound
	}
	return utils.Ptr(*tenant), nil
}
