// Package keychain models the credential bundle handed to the deployment
// orchestrator. One bundle entry per host carries the mTLS trust material
// and connection parameters for both control planes of that host: the
// container runtime and the reverse proxy admin API.
package keychain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/javaarchive/nerine-tweaks/utils"
)

// DefaultHostID is the fallback host entry the orchestrator requires.
const DefaultHostID = "default"

var (
	// ErrMissingDefault is returned when a bundle has no "default" host.
	ErrMissingDefault = errors.New("missing default host keychain")
	// ErrDuplicateHost is returned when two entries share an id.
	ErrDuplicateHost = errors.New("duplicate host keychain")
)

// Host is one keychain entry.
type Host struct {
	ID     string `json:"id"`
	Caddy  Caddy  `json:"caddy"`
	Docker Docker `json:"docker"`
}

// Caddy holds the admin endpoint of the reverse proxy together with the
// client identity used to authenticate against it. All PEM material is
// embedded as string values.
type Caddy struct {
	// Endpoint is the admin API base URL.
	Endpoint string `json:"endpoint"`
	// Base is the parent domain challenges are exposed under;
	// vhosts take the form <subdomain>.<base>.
	Base string `json:"base"`
	// CACert is the PEM CA certificate of the proxy-admin trust domain.
	CACert string `json:"cacert"`
	// Cert and Key are the PEM client leaf pair.
	Cert string `json:"cert"`
	Key  string `json:"key"`
}

// Docker holds the container runtime connection and registry parameters.
type Docker struct {
	Docker      Backend              `json:"docker"`
	Credentials *RegistryCredentials `json:"docker_credentials"`
	ImagePrefix string               `json:"image_prefix"`
	Repo        string               `json:"repo"`
}

// RegistryCredentials optionally authenticates image pulls.
type RegistryCredentials struct {
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	ServerAddress string `json:"serveraddress,omitempty"`
}

// BackendType discriminates the runtime backend variants.
type BackendType string

const (
	// BackendLocal connects through the local runtime socket.
	BackendLocal BackendType = "local"
	// BackendSSL connects to a remote runtime over mutual TLS.
	BackendSSL BackendType = "ssl"
)

// Backend describes how to reach the container runtime. Exactly one variant
// is valid: local carries nothing beyond the tag, ssl carries the dial
// address and the full PEM triple of the runtime trust domain.
type Backend struct {
	Type    BackendType `json:"type"`
	Address string      `json:"address,omitempty"`
	Key     string      `json:"key,omitempty"`
	Cert    string      `json:"cert,omitempty"`
	CA      string      `json:"ca,omitempty"`
}

// LocalBackend returns the local-socket runtime variant.
func LocalBackend() Backend {
	return Backend{Type: BackendLocal}
}

// SSLBackend returns the remote mTLS runtime variant.
func SSLBackend(address string, ca, cert, key []byte) Backend {
	return Backend{
		Type:    BackendSSL,
		Address: address,
		CA:      string(ca),
		Cert:    string(cert),
		Key:     string(key),
	}
}

// Validate enforces the single-variant invariant.
func (b Backend) Validate() error {
	switch b.Type {
	case BackendLocal:
		if b.Address != "" || b.CA != "" || b.Cert != "" || b.Key != "" {
			return fmt.Errorf("local backend must not carry connection material")
		}
	case BackendSSL:
		if b.Address == "" {
			return fmt.Errorf("ssl backend requires an address")
		}
		if b.CA == "" || b.Cert == "" || b.Key == "" {
			return fmt.Errorf("ssl backend requires ca, cert and key")
		}
	default:
		return fmt.Errorf("unknown backend type %q", b.Type)
	}
	return nil
}

// Validate checks a single host entry.
func (h Host) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("host keychain id must not be empty")
	}
	if h.Caddy.Endpoint == "" {
		return fmt.Errorf("host %q: caddy endpoint must not be empty", h.ID)
	}
	if h.Caddy.Base == "" {
		return fmt.Errorf("host %q: caddy base domain must not be empty", h.ID)
	}
	if h.Caddy.CACert == "" || h.Caddy.Cert == "" || h.Caddy.Key == "" {
		return fmt.Errorf("host %q: caddy trust material is incomplete", h.ID)
	}
	if err := h.Docker.Docker.Validate(); err != nil {
		return fmt.Errorf("host %q: %w", h.ID, err)
	}
	return nil
}

// Encode validates the bundle and serializes it to JSON. The bundle must
// contain a "default" entry and ids must be unique.
func Encode(hosts []Host) ([]byte, error) {
	seen := map[string]struct{}{}
	for _, h := range hosts {
		if err := h.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[h.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHost, h.ID)
		}
		seen[h.ID] = struct{}{}
	}
	if _, ok := seen[DefaultHostID]; !ok {
		return nil, ErrMissingDefault
	}

	return json.MarshalIndent(hosts, "", "    ")
}

// Write encodes the bundle and writes it with owner-only permissions;
// it embeds private keys.
func Write(path string, hosts []Host) error {
	b, err := Encode(hosts)
	if err != nil {
		return err
	}
	return utils.WriteSecretFile(path, b)
}

// Load reads and validates a bundle from disk. Mirrors the orchestrator's
// parsing so a bundle that loads here loads there.
func Load(path string) ([]Host, error) {
	b, err := utils.ReadFileContent(path)
	if err != nil {
		return nil, err
	}

	var hosts []Host
	if err := json.Unmarshal(b, &hosts); err != nil {
		return nil, fmt.Errorf("failed parsing keychain: %w", err)
	}

	seen := map[string]struct{}{}
	for _, h := range hosts {
		if err := h.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[h.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHost, h.ID)
		}
		seen[h.ID] = struct{}{}
	}
	if _, ok := seen[DefaultHostID]; !ok {
		return nil, ErrMissingDefault
	}

	return hosts, nil
}
