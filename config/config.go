// Package config assembles the bootstrap configuration once, before any
// stateful operation runs. Every input resolves through the same ordered
// chain: explicit override, then environment variable, then interactive
// prompt, then the documented default. The resulting Config is treated as
// immutable by everything downstream.
package config

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/javaarchive/nerine-tweaks/utils"
)

// Environment variable names recognized by the resolver. These match the
// names the platform's compose files already document.
const (
	KeyPlatformDomain   = "PLATFORM_DOMAIN"
	KeyChallengesDomain = "CHALLS_DOMAIN"
	KeyExternalIP       = "EXTERNAL_IP"
	KeyCACommonName     = "CA_COMMON_NAME"
	KeyInstallPath      = "INSTALL_PATH"
	KeyArtifactRef      = "ARTIFACT_REF"
	KeyLocalDev         = "LOCAL_DEV"
	KeyEnableHTTPS      = "ENABLE_HTTPS_PLATFORM"
	KeyAddPlatformRts   = "ADD_PLATFORM_ROUTES"
	KeyTrustProxy       = "TRUST_PROXY"
	KeyCFDNSChallenges  = "ENABLE_CF_DNS_CHALLENGES"
	KeyBindHost         = "BIND_HOST"
	KeyHTTPPort         = "HTTP_PORT"
	KeyHTTPSPort        = "HTTPS_PORT"
)

const (
	DefaultPlatformDomain = "nerine.localhost"
	DefaultInstallPath    = "/opt/nerine"
	DefaultArtifactRef    = "main"
)

// Config is the one immutable configuration value of a bootstrap run.
type Config struct {
	PlatformDomain   string
	ChallengesDomain string
	// ExternalIP is the address challenge traffic reaches the proxy host
	// on. Resolved from ChallengesDomain unless supplied.
	ExternalIP   string
	CACommonName string
	InstallPath  string
	// ArtifactRef selects the prebuilt artifacts to fetch.
	ArtifactRef string

	// LocalDev keeps everything on one host: local runtime socket,
	// loopback-only proxy admin.
	LocalDev              bool
	EnableHTTPS           bool
	AddPlatformRoutes     bool
	TrustProxy            bool
	EnableCFDNSChallenges bool

	BindHost  string
	HTTPPort  int
	HTTPSPort int

	// AssumeYes answers re-key confirmations non-interactively.
	AssumeYes bool
	// SkipFetch skips artifact downloads for air-gapped installs.
	SkipFetch bool
}

// Resolver walks the input-resolution chain for each key.
type Resolver struct {
	// Overrides are explicitly supplied values (command line flags);
	// they win over everything.
	Overrides map[string]string
	// Prompt handles interactive fallback; nil means non-interactive.
	Prompt Prompter

	env *viper.Viper
}

// NewResolver builds a resolver over the process environment.
func NewResolver(overrides map[string]string, prompt Prompter) *Resolver {
	v := viper.New()
	v.AutomaticEnv()

	return &Resolver{
		Overrides: overrides,
		Prompt:    prompt,
		env:       v,
	}
}

// explicit returns the override or environment value for key, never
// consulting the prompt.
func (r *Resolver) explicit(key string) string {
	if v, ok := r.Overrides[key]; ok && v != "" {
		return v
	}
	return r.env.GetString(key)
}

// Value resolves one string input.
func (r *Resolver) Value(key, question, def string) (string, error) {
	if v, ok := r.Overrides[key]; ok && v != "" {
		log.Debugf("%s supplied explicitly", key)
		return v, nil
	}

	if v := r.env.GetString(key); v != "" {
		log.Debugf("%s taken from environment", key)
		return v, nil
	}

	if r.Prompt != nil {
		return r.Prompt.Ask(key, question, def)
	}

	return def, nil
}

// Bool resolves one boolean input. Truthy spellings are 1, true and yes.
func (r *Resolver) Bool(key, question string, def bool) (bool, error) {
	raw, err := r.Value(key, question, formatBool(def))
	if err != nil {
		return false, err
	}
	return parseBool(raw), nil
}

// Port resolves one TCP port input.
func (r *Resolver) Port(key, question string, def int) (int, error) {
	raw, err := r.Value(key, question, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}

	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%s: invalid port %q", key, raw)
	}
	return port, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Load resolves the full configuration through the given resolver.
func Load(r *Resolver) (*Config, error) {
	cfg := &Config{}
	var err error

	if cfg.PlatformDomain, err = r.Value(KeyPlatformDomain,
		"Platform domain", DefaultPlatformDomain); err != nil {
		return nil, err
	}

	if cfg.ChallengesDomain, err = r.Value(KeyChallengesDomain,
		"Challenges domain", "challs."+cfg.PlatformDomain); err != nil {
		return nil, err
	}

	if cfg.CACommonName, err = r.Value(KeyCACommonName,
		"Certificate authority common name", ""); err != nil {
		return nil, err
	}

	if cfg.InstallPath, err = r.Value(KeyInstallPath,
		"Install path", DefaultInstallPath); err != nil {
		return nil, err
	}

	if cfg.ArtifactRef, err = r.Value(KeyArtifactRef,
		"Artifact git reference", DefaultArtifactRef); err != nil {
		return nil, err
	}

	if cfg.LocalDev, err = r.Bool(KeyLocalDev,
		"Local development mode", false); err != nil {
		return nil, err
	}

	if cfg.EnableHTTPS, err = r.Bool(KeyEnableHTTPS,
		"Enable HTTPS for the platform", false); err != nil {
		return nil, err
	}

	if cfg.AddPlatformRoutes, err = r.Bool(KeyAddPlatformRts,
		"Route the platform vhost through the proxy", true); err != nil {
		return nil, err
	}

	if cfg.TrustProxy, err = r.Bool(KeyTrustProxy,
		"Trust forwarded headers from private ranges", false); err != nil {
		return nil, err
	}

	if cfg.EnableCFDNSChallenges, err = r.Bool(KeyCFDNSChallenges,
		"Enable cloudflare DNS challenges", false); err != nil {
		return nil, err
	}

	if cfg.BindHost, err = r.Value(KeyBindHost,
		"Bind address (empty for all interfaces)", ""); err != nil {
		return nil, err
	}

	if cfg.HTTPPort, err = r.Port(KeyHTTPPort, "HTTP port", 80); err != nil {
		return nil, err
	}

	if cfg.HTTPSPort, err = r.Port(KeyHTTPSPort, "HTTPS port", 443); err != nil {
		return nil, err
	}

	if err = resolveExternalIP(cfg, r); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveExternalIP fills cfg.ExternalIP: explicit value, then DNS, then
// the manual prompt. Prompting is strictly the degradation path after a
// failed resolution, never the first stop.
func resolveExternalIP(cfg *Config, r *Resolver) error {
	ip := r.explicit(KeyExternalIP)

	if ip == "" {
		var err error
		ip, err = utils.ResolveIPv4(cfg.ChallengesDomain)
		if err != nil {
			log.Warnf("could not resolve %s: %v", cfg.ChallengesDomain, err)
			if r.Prompt != nil {
				ip, err = r.Prompt.Ask(KeyExternalIP,
					fmt.Sprintf("External IP for %s", cfg.ChallengesDomain), "")
				if err != nil {
					return err
				}
			}
		}
	}

	if ip == "" && !cfg.LocalDev {
		return fmt.Errorf("no external IP available for %s; set %s", cfg.ChallengesDomain, KeyExternalIP)
	}

	cfg.ExternalIP = ip
	return nil
}
