package authcore

import (
	"io"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config holds the authenticator's spec §6 configuration table. Durations
// are expressed in seconds on the wire (YAML), matching spec.md's units,
// and converted to time.Duration by NewConfig/LoadConfig.
type Config struct {
	// ExpireTimerSeconds is the timer-sweep interval (default 30s).
	ExpireTimerSeconds int `yaml:"expire_timer_seconds"`
	// DefaultHostTimeoutSeconds is the inactivity window a connector falls
	// back to when its own InactivityLen is hoststate.InactivityDefault
	// (default 300s).
	DefaultHostTimeoutSeconds uint32 `yaml:"default_host_timeout_seconds"`
	// NameTimeoutSeconds is the interner's reclaim TTL (default 120s).
	NameTimeoutSeconds int `yaml:"name_timeout_seconds"`
	// AddrTimeoutSeconds is the grace period an emptied NWEntry survives
	// before the sweep prunes it (default 600s).
	AddrTimeoutSeconds int `yaml:"addr_timeout_seconds"`
	// LookupUnauthDst enables a directory name lookup for unresolved flow
	// destinations instead of defaulting straight to UNAUTHENTICATED.
	LookupUnauthDst bool `yaml:"lookup_unauth_dst"`
	// AutoAuthHosts, when true, silently auto-authenticates any
	// unresolved source dladdr as AUTHENTICATED rather than fabricating a
	// temporary unauthenticated connector.
	AutoAuthHosts bool `yaml:"auto_auth_hosts"`
	// InternalSubnets are nwaddr CIDRs the router case treats as internal:
	// a router dladdr's packet from such an address keeps its own nwaddr
	// instead of being folded onto the nwaddr-0 entry (see spec §4.2).
	InternalSubnets []string `yaml:"internal_subnets"`
}

// NewConfig returns spec.md §6's documented defaults.
func NewConfig() Config {
	return Config{
		ExpireTimerSeconds:        30,
		DefaultHostTimeoutSeconds: 300,
		NameTimeoutSeconds:        120,
		AddrTimeoutSeconds:        600,
		LookupUnauthDst:           true,
		AutoAuthHosts:             false,
	}
}

// LoadConfig reads a YAML document from r, starting from NewConfig's
// defaults so a partial document only overrides the fields it sets.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := NewConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) expireTimer() time.Duration {
	return time.Duration(c.ExpireTimerSeconds) * time.Second
}

func (c Config) nameTimeout() time.Duration {
	return time.Duration(c.NameTimeoutSeconds) * time.Second
}

func (c Config) addrTimeout() time.Duration {
	return time.Duration(c.AddrTimeoutSeconds) * time.Second
}
