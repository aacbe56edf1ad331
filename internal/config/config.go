package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	BackendConfig
	SessionConfig
	SSOConfig
}

type mainConfig struct {
	EnvVars
	Backend
	*Session
	SSO
}

// New loads configuration with defaults -> config file -> environment
// precedence. A missing .env or YAML file is not an error; environment
// variables always win.
func New() (Config, error) {
	_ = godotenv.Load()

	session, err := LoadSession(GetEnv(configFileEnvVar, defaultConfigFile))
	if err != nil {
		return nil, err
	}

	return mainConfig{Session: session}, nil
}
