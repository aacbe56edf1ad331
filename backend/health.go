package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const probeTimeout = 3 * time.Second

// Prober answers connectivity checks. The gate suspends redirect decisions
// while the probe reports offline so flaky connectivity never logs a user
// out.
type Prober interface {
	Online(ctx context.Context) bool
}

// HealthProber probes a health endpoint with HEAD, falling back to GET for
// servers that reject HEAD. It carries no business data.
type HealthProber struct {
	endpoint   string
	httpClient *http.Client
}

var _ Prober = (*HealthProber)(nil)

// NewHealthProber creates a prober for the given health endpoint URL.
func NewHealthProber(endpoint string) (*HealthProber, error) {
	if endpoint == "" {
		return nil, errors.New("[NewHealthProber] endpoint is required")
	}
	return &HealthProber{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: probeTimeout},
	}, nil
}

// Online reports whether the health endpoint answered at all. Any HTTP
// status counts as connectivity; only transport failures mean offline.
func (p *HealthProber) Online(ctx context.Context) bool {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, p.endpoint, nil)
		if err != nil {
			return false
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			return true
		}
	}
	return false
}
