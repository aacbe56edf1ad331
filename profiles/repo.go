package profiles

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fixdesk/fixdesk/backend"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

type Repo interface {
	// GetByUserID returns the single profile for an authenticated identity.
	GetByUserID(ctx context.Context, accessToken, userID string) (*Profile, error)

	// Update persists changes to an existing profile.
	Update(ctx context.Context, accessToken string, profile *Profile) error
}

// BackendRepo reads profiles through the hosted backend's data endpoints.
type BackendRepo struct {
	data *backend.DataClient
}

var _ Repo = (*BackendRepo)(nil)

func NewBackendRepo(data *backend.DataClient) *BackendRepo {
	return &BackendRepo{data: data}
}

func (r *BackendRepo) GetByUserID(ctx context.Context, accessToken, userID string) (*Profile, error) {
	var rows []Profile
	err := r.data.From("profiles").
		Eq("user_id", userID).
		Limit(1).
		Get(ctx, accessToken, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "[BackendRepo.GetByUserID]")
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(apperrors.ErrProfileNotFound, "user %s", userID)
	}
	return &rows[0], nil
}

func (r *BackendRepo) Update(ctx context.Context, accessToken string, profile *Profile) error {
	if profile.ID == "" {
		return errors.New("[BackendRepo.Update] profile ID is required")
	}
	err := r.data.From("profiles").
		Eq("id", profile.ID).
		Eq("tenant_id", profile.TenantID).
		Update(ctx, accessToken, profile)
	return errors.Wrap(err, "[BackendRepo.Update]")
}
