package config

type BackendConfig interface {
	GetBackendURL() string
	GetBackendKey() string
	GetHealthEndpoint() string
}

type Backend struct{}

var _ BackendConfig = Backend{}

// GetBackendURL returns the base URL of the hosted backend service
// (auth, data and storage endpoints all hang off this URL).
func (Backend) GetBackendURL() string {
	return GetEnv("BACKEND_URL", "http://localhost:9000")
}

// GetBackendKey returns the publishable API key sent with every request.
func (Backend) GetBackendKey() string {
	return GetEnv("BACKEND_KEY", "")
}

// GetHealthEndpoint returns the URL probed for connectivity checks.
// Defaults to the backend's health route.
func (Backend) GetHealthEndpoint() string {
	return GetEnv("HEALTH_ENDPOINT", GetEnv("BACKEND_URL", "http://localhost:9000")+"/health")
}
