// Package caddy synthesizes the reverse proxy's JSON configuration: the
// mTLS-gated admin surface, the wildcard challenge vhost with its dynamic
// routing pipeline, and the private CA the admin API issues its own
// identity from.
package caddy

// Fixed wiring of the deployed proxy. The deployer dials the remote admin
// port; the platform processes sit behind the loopback upstreams.
const (
	AdminListenLocal  = "localhost:990"
	AdminListenRemote = "0.0.0.0:995"

	// LocalAdminCA is the id of the private CA the admin API self-issues
	// its identity certificate from.
	LocalAdminCA = "local-admin"

	// Root material of the private admin CA as deployed on the proxy host.
	CARootCertPath = "/var/lib/caddy/ca.pem"
	CARootKeyPath  = "/var/lib/caddy/ca-key.pem"

	// DockerBridgeIP is always a valid admin identity on a host running
	// the container runtime with its default bridge.
	DockerBridgeIP = "172.17.0.1"

	// DynamicUpstream is the variable the dynamic_router handler fills in
	// with the resolved backend dial address. The handler itself is an
	// external plugin; only this contract is relied upon.
	DynamicUpstream = "{http.vars.dynamic.upstream}"

	PlatformAPIUpstream      = "127.0.0.1:3333"
	PlatformFrontendUpstream = "127.0.0.1:3334"

	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
)

// trustedRanges are honored as proxy sources when trust-proxy handling
// is enabled.
var trustedRanges = []string{
	"192.168.0.0/16",
	"172.16.0.0/12",
	"10.0.0.0/8",
	"127.0.0.1/8",
	"fd00::/8",
	"::1",
}

// Config is the root of a caddy JSON configuration.
type Config struct {
	Admin *Admin `json:"admin,omitempty"`
	Apps  Apps   `json:"apps"`
}

// Admin configures the administrative API listeners.
type Admin struct {
	Listen   string       `json:"listen"`
	Remote   *RemoteAdmin `json:"remote,omitempty"`
	Identity *Identity    `json:"identity,omitempty"`
}

// RemoteAdmin is the TLS admin endpoint reachable from other hosts. The
// access control list is the sole boundary on this control plane.
type RemoteAdmin struct {
	Listen        string          `json:"listen"`
	AccessControl []AccessControl `json:"access_control"`
}

// AccessControl allow-lists client public keys.
type AccessControl struct {
	PublicKeys []string `json:"public_keys"`
}

// Identity lets the admin endpoint issue its own serving certificate.
type Identity struct {
	Identifiers []string `json:"identifiers"`
	Issuers     []IdentityIssuer `json:"issuers"`
}

// IdentityIssuer selects the internal issuer backed by a private CA.
type IdentityIssuer struct {
	Module       string `json:"module"`
	CA           string `json:"ca,omitempty"`
	SignWithRoot bool   `json:"sign_with_root,omitempty"`
}

// Apps holds the caddy app configurations.
type Apps struct {
	HTTP HTTPApp `json:"http"`
	PKI  PKIApp  `json:"pki"`
	TLS  *TLSApp `json:"tls,omitempty"`
}

// HTTPApp configures HTTP servers.
type HTTPApp struct {
	Servers map[string]*Server `json:"servers"`
}

// Server is one HTTP listener block.
type Server struct {
	ID             string          `json:"@id,omitempty"`
	AutomaticHTTPS *AutomaticHTTPS `json:"automatic_https,omitempty"`
	Listen         []string        `json:"listen"`
	Routes         []Route         `json:"routes"`
	TrustedProxies *TrustedProxies `json:"trusted_proxies,omitempty"`
}

// AutomaticHTTPS toggles certificate automation for a server.
type AutomaticHTTPS struct {
	Disable bool `json:"disable,omitempty"`
}

// TrustedProxies declares source ranges whose forwarded headers are honored.
type TrustedProxies struct {
	Ranges []string `json:"ranges"`
}

// Route pairs request matchers with a handler chain.
type Route struct {
	Match    []Match   `json:"match,omitempty"`
	Handle   []Handler `json:"handle,omitempty"`
	Terminal bool      `json:"terminal,omitempty"`
}

// Match selects requests by host or path.
type Match struct {
	Host []string `json:"host,omitempty"`
	Path []string `json:"path,omitempty"`
}

// Handler is one step of a route's pipeline. Only the fields of the
// selected handler module are populated.
type Handler struct {
	Handler   string     `json:"handler"`
	Upstreams []Upstream `json:"upstreams,omitempty"`
	Routes    []Route    `json:"routes,omitempty"`
}

// Upstream is a reverse proxy dial target.
type Upstream struct {
	Dial string `json:"dial"`
}

// PKIApp configures private certificate authorities.
type PKIApp struct {
	CertificateAuthorities map[string]CertificateAuthority `json:"certificate_authorities"`
}

// CertificateAuthority is one private CA entry. InstallTrust is emitted
// explicitly so the proxy never installs the CA into the host trust store.
type CertificateAuthority struct {
	Name         string   `json:"name"`
	InstallTrust *bool    `json:"install_trust,omitempty"`
	Root         *KeyPair `json:"root,omitempty"`
}

// KeyPair references certificate and key files on the proxy host.
type KeyPair struct {
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"private_key"`
}

// TLSApp configures certificate automation policies.
type TLSApp struct {
	Automation *Automation `json:"automation,omitempty"`
}

// Automation holds automation policies.
type Automation struct {
	Policies []AutomationPolicy `json:"policies,omitempty"`
}

// AutomationPolicy binds subjects to ACME issuers.
type AutomationPolicy struct {
	Subjects []string     `json:"subjects,omitempty"`
	Issuers  []ACMEIssuer `json:"issuers,omitempty"`
}

// ACMEIssuer is an acme issuer module with optional DNS challenges.
type ACMEIssuer struct {
	Challenges *Challenges `json:"challenges,omitempty"`
	Module     string      `json:"module"`
}

// Challenges configures the challenge types of an issuer.
type Challenges struct {
	DNS *DNSChallenge `json:"dns,omitempty"`
}

// DNSChallenge solves dns-01 through a provider module.
type DNSChallenge struct {
	Provider  DNSProvider `json:"provider"`
	Resolvers []string    `json:"resolvers,omitempty"`
}

// DNSProvider identifies the DNS plugin and its credentials. The token is
// left as a caddy env placeholder so it never lands in the config file.
type DNSProvider struct {
	APIToken string `json:"api_token,omitempty"`
	Name     string `json:"name"`
}
