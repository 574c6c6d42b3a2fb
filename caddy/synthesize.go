package caddy

import (
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Options are the inputs of one synthesized proxy configuration.
// Zero ports fall back to the defaults; an empty BindHost binds all
// interfaces.
type Options struct {
	// PlatformDomain is the vhost of the platform API and frontend.
	PlatformDomain string
	// ChallengesDomain is the parent of all challenge vhosts; the server
	// matches *.<ChallengesDomain>.
	ChallengesDomain string
	// ExternalIP, when set, is added to the admin identity identifiers.
	ExternalIP string
	// AdminClientCert is the PEM client leaf whose public key becomes the
	// remote admin allow-list. Required unless LocalOnly.
	AdminClientCert []byte

	// LocalOnly keeps the admin API on the loopback listener only.
	LocalOnly bool
	// EnableHTTPS serves the vhosts over TLS as well.
	EnableHTTPS bool
	// AddPlatformRoutes routes the platform vhost to the API and frontend
	// upstreams.
	AddPlatformRoutes bool
	// TrustProxy honors forwarded headers from private ranges.
	TrustProxy bool
	// EnableCFDNSChallenges provisions certificates via cloudflare dns-01.
	EnableCFDNSChallenges bool

	BindHost  string
	HTTPPort  int
	HTTPSPort int
}

// Synthesize builds the proxy configuration for the given options.
func Synthesize(opts Options) (*Config, error) {
	if opts.ChallengesDomain == "" {
		return nil, fmt.Errorf("challenges domain must not be empty")
	}

	admin, err := synthesizeAdmin(opts)
	if err != nil {
		return nil, err
	}

	server, err := synthesizeServer(opts)
	if err != nil {
		return nil, err
	}

	installTrust := false
	cfg := &Config{
		Admin: admin,
		Apps: Apps{
			HTTP: HTTPApp{
				Servers: map[string]*Server{
					"srv0": server,
				},
			},
			PKI: PKIApp{
				CertificateAuthorities: map[string]CertificateAuthority{
					LocalAdminCA: {
						Name:         LocalAdminCA,
						InstallTrust: &installTrust,
						Root: &KeyPair{
							Certificate: CARootCertPath,
							PrivateKey:  CARootKeyPath,
						},
					},
				},
			},
		},
	}

	if opts.EnableCFDNSChallenges {
		cfg.Apps.TLS = &TLSApp{
			Automation: &Automation{
				Policies: []AutomationPolicy{
					{
						Subjects: []string{
							opts.PlatformDomain,
							"*." + opts.ChallengesDomain,
						},
						Issuers: []ACMEIssuer{
							{
								Module: "acme",
								Challenges: &Challenges{
									DNS: &DNSChallenge{
										Provider: DNSProvider{
											Name: "cloudflare",
											// must be provided via env on the proxy host
											APIToken: "{env.CF_API_TOKEN}",
										},
										Resolvers: []string{"1.1.1.1"},
									},
								},
							},
						},
					},
				},
			},
		}
	}

	return cfg, nil
}

func synthesizeAdmin(opts Options) (*Admin, error) {
	admin := &Admin{Listen: AdminListenLocal}

	if opts.LocalOnly {
		log.Debug("local-only topology, skipping remote admin endpoint")
		return admin, nil
	}

	publicKey, err := PublicKeyEntry(opts.AdminClientCert)
	if err != nil {
		return nil, fmt.Errorf("building remote admin allow-list: %w", err)
	}

	admin.Remote = &RemoteAdmin{
		Listen: AdminListenRemote,
		AccessControl: []AccessControl{
			{PublicKeys: []string{publicKey}},
		},
	}

	identifiers := []string{"127.0.0.1", DockerBridgeIP}
	seeded := false
	for _, id := range identifiers {
		if id == opts.ExternalIP {
			seeded = true
		}
	}
	if opts.ExternalIP != "" && !seeded {
		identifiers = append(identifiers, opts.ExternalIP)
	}

	admin.Identity = &Identity{
		Identifiers: identifiers,
		Issuers: []IdentityIssuer{
			{
				Module:       "internal",
				CA:           LocalAdminCA,
				SignWithRoot: true,
			},
		},
	}

	return admin, nil
}

func synthesizeServer(opts Options) (*Server, error) {
	httpPort := opts.HTTPPort
	if httpPort == 0 {
		httpPort = DefaultHTTPPort
	}
	httpsPort := opts.HTTPSPort
	if httpsPort == 0 {
		httpsPort = DefaultHTTPSPort
	}

	// custom ports with https on are unsupported: caddy cannot always
	// figure out which port should be http and which should be https
	listen := []string{fmt.Sprintf("%s:%d", opts.BindHost, httpPort)}
	if opts.EnableHTTPS {
		listen = []string{
			fmt.Sprintf("%s:%d", opts.BindHost, httpsPort),
			fmt.Sprintf("%s:%d", opts.BindHost, httpPort),
		}
	}

	challengeHosts := []string{"*." + opts.ChallengesDomain}

	routes := []Route{
		{
			Match: []Match{{Host: challengeHosts}},
			Handle: []Handler{
				{Handler: "dynamic_router"},
				{
					Handler:   "reverse_proxy",
					Upstreams: []Upstream{{Dial: DynamicUpstream}},
				},
			},
		},
	}

	if opts.AddPlatformRoutes {
		if opts.PlatformDomain == "" {
			return nil, fmt.Errorf("platform routes requested without a platform domain")
		}
		routes = append(routes, Route{
			Match: []Match{{Host: []string{opts.PlatformDomain}}},
			Handle: []Handler{
				{
					Handler: "subroute",
					Routes: []Route{
						{
							Match: []Match{{Path: []string{"/api/*"}}},
							Handle: []Handler{
								{
									Handler:   "reverse_proxy",
									Upstreams: []Upstream{{Dial: PlatformAPIUpstream}},
								},
							},
						},
						{
							Match: []Match{{Path: []string{"/*"}}},
							Handle: []Handler{
								{
									Handler:   "reverse_proxy",
									Upstreams: []Upstream{{Dial: PlatformFrontendUpstream}},
								},
							},
						},
					},
				},
			},
			Terminal: true,
		})
	}

	// unmatched subdomains stop here instead of falling through to
	// another vhost
	routes = append(routes, Route{
		Match:    []Match{{Host: challengeHosts}},
		Terminal: true,
	})

	server := &Server{
		ID:     "default-server",
		Listen: listen,
		Routes: routes,
	}

	if !opts.EnableHTTPS {
		server.AutomaticHTTPS = &AutomaticHTTPS{Disable: true}
	}

	if opts.TrustProxy {
		server.TrustedProxies = &TrustedProxies{Ranges: trustedRanges}
	}

	return server, nil
}

// Encode serializes a synthesized configuration the way the proxy loads it.
func (c *Config) Encode() ([]byte, error) {
	return json.MarshalIndent(c, "", "    ")
}

// PublicKeyEntry extracts the body of the first PEM block in certPEM,
// newlines preserved. This is the exact form the proxy expects inside the
// remote admin access control list.
func PublicKeyEntry(certPEM []byte) (string, error) {
	lines := strings.Split(string(certPEM), "\n")

	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "-----BEGIN ") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no PEM block found")
	}

	var body []string
	for _, l := range lines[start:] {
		if strings.HasPrefix(l, "-----END ") {
			return strings.Join(body, "\n") + "\n", nil
		}
		body = append(body, l)
	}

	return "", fmt.Errorf("unterminated PEM block")
}
