package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionConfig carries every timing knob of the session layer. All of these
// are injected rather than branched on a runtime environment flag, so tests
// and deployments can shorten or stretch them freely.
type SessionConfig interface {
	GetBootstrapTimeout() time.Duration
	GetAttemptTimeout() time.Duration
	GetMaxFetchAttempts() int
	GetInitialRetryDelay() time.Duration
	GetBackoffFactor() float64
	GetMaxRetryDelay() time.Duration
	GetHeartbeatInterval() time.Duration
	GetForegroundRecheckWindow() time.Duration
	GetEventCoalesceWindow() time.Duration
	GetRedirectSuppressWindow() time.Duration
	GetProfileFreshness() time.Duration
	GetIdleEvictionWindow() time.Duration
}

// Session is the resolved timing configuration, merged from defaults, the
// YAML config file and environment overrides in that order.
type Session struct {
	BootstrapTimeout        time.Duration
	AttemptTimeout          time.Duration
	MaxFetchAttempts        int
	InitialRetryDelay       time.Duration
	BackoffFactor           float64
	MaxRetryDelay           time.Duration
	HeartbeatInterval       time.Duration
	ForegroundRecheckWindow time.Duration
	EventCoalesceWindow     time.Duration
	RedirectSuppressWindow  time.Duration
	ProfileFreshness        time.Duration
	IdleEvictionWindow      time.Duration
}

var _ SessionConfig = (*Session)(nil)

// sessionFile mirrors the YAML schema of the session section in the config
// file. It is separate from Session so parsing stays independent of the
// resolved runtime values.
type sessionFile struct {
	Session struct {
		BootstrapTimeout        string  `yaml:"bootstrap_timeout"`
		AttemptTimeout          string  `yaml:"attempt_timeout"`
		MaxFetchAttempts        int     `yaml:"max_fetch_attempts"`
		InitialRetryDelay       string  `yaml:"initial_retry_delay"`
		BackoffFactor           float64 `yaml:"backoff_factor"`
		MaxRetryDelay           string  `yaml:"max_retry_delay"`
		HeartbeatInterval       string  `yaml:"heartbeat_interval"`
		ForegroundRecheckWindow string  `yaml:"foreground_recheck_window"`
		EventCoalesceWindow     string  `yaml:"event_coalesce_window"`
		RedirectSuppressWindow  string  `yaml:"redirect_suppress_window"`
		ProfileFreshness        string  `yaml:"profile_freshness"`
		IdleEvictionWindow      string  `yaml:"idle_eviction_window"`
	} `yaml:"session"`
}

// LoadSession resolves the session timing configuration. A missing file keeps
// the defaults; a malformed file is an error.
func LoadSession(path string) (*Session, error) {
	s := &Session{
		BootstrapTimeout:        10 * time.Second,
		AttemptTimeout:          5 * time.Second,
		MaxFetchAttempts:        3,
		InitialRetryDelay:       500 * time.Millisecond,
		BackoffFactor:           2.0,
		MaxRetryDelay:           8 * time.Second,
		HeartbeatInterval:       30 * time.Second,
		ForegroundRecheckWindow: 10 * time.Second,
		EventCoalesceWindow:     100 * time.Millisecond,
		RedirectSuppressWindow:  15 * time.Second,
		ProfileFreshness:        5 * time.Minute,
		IdleEvictionWindow:      30 * time.Minute,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f sessionFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, unmarshalErr)
		}
		applyDuration(&s.BootstrapTimeout, f.Session.BootstrapTimeout)
		applyDuration(&s.AttemptTimeout, f.Session.AttemptTimeout)
		if f.Session.MaxFetchAttempts > 0 {
			s.MaxFetchAttempts = f.Session.MaxFetchAttempts
		}
		applyDuration(&s.InitialRetryDelay, f.Session.InitialRetryDelay)
		if f.Session.BackoffFactor > 0 {
			s.BackoffFactor = f.Session.BackoffFactor
		}
		applyDuration(&s.MaxRetryDelay, f.Session.MaxRetryDelay)
		applyDuration(&s.HeartbeatInterval, f.Session.HeartbeatInterval)
		applyDuration(&s.ForegroundRecheckWindow, f.Session.ForegroundRecheckWindow)
		applyDuration(&s.EventCoalesceWindow, f.Session.EventCoalesceWindow)
		applyDuration(&s.RedirectSuppressWindow, f.Session.RedirectSuppressWindow)
		applyDuration(&s.ProfileFreshness, f.Session.ProfileFreshness)
		applyDuration(&s.IdleEvictionWindow, f.Session.IdleEvictionWindow)
	}

	applyDurationEnv(&s.BootstrapTimeout, "BOOTSTRAP_TIMEOUT")
	applyDurationEnv(&s.HeartbeatInterval, "HEARTBEAT_INTERVAL")
	applyDurationEnv(&s.AttemptTimeout, "ATTEMPT_TIMEOUT")

	return s, nil
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}

func applyDurationEnv(dst *time.Duration, envVar string) {
	applyDuration(dst, os.Getenv(envVar))
}

func (s *Session) GetBootstrapTimeout() time.Duration        { return s.BootstrapTimeout }
func (s *Session) GetAttemptTimeout() time.Duration          { return s.AttemptTimeout }
func (s *Session) GetMaxFetchAttempts() int                  { return s.MaxFetchAttempts }
func (s *Session) GetInitialRetryDelay() time.Duration       { return s.InitialRetryDelay }
func (s *Session) GetBackoffFactor() float64                 { return s.BackoffFactor }
func (s *Session) GetMaxRetryDelay() time.Duration           { return s.MaxRetryDelay }
func (s *Session) GetHeartbeatInterval() time.Duration       { return s.HeartbeatInterval }
func (s *Session) GetForegroundRecheckWindow() time.Duration { return s.ForegroundRecheckWindow }
func (s *Session) GetEventCoalesceWindow() time.Duration     { return s.EventCoalesceWindow }
func (s *Session) GetRedirectSuppressWindow() time.Duration  { return s.RedirectSuppressWindow }
func (s *Session) GetProfileFreshness() time.Duration        { return s.ProfileFreshness }
func (s *Session) GetIdleEvictionWindow() time.Duration      { return s.IdleEvictionWindow }
