// Package bootstrap runs the full trust bootstrap for a platform install:
// per-trust-domain certificate issuance, the credential bundle, the proxy
// configurations, fresh platform secrets and the prebuilt deployment
// artifacts. Stages run strictly in order and any failure aborts the run;
// a failed bootstrap is rerun from scratch.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/javaarchive/nerine-tweaks/caddy"
	"github.com/javaarchive/nerine-tweaks/cert"
	"github.com/javaarchive/nerine-tweaks/config"
	"github.com/javaarchive/nerine-tweaks/event"
	"github.com/javaarchive/nerine-tweaks/fetch"
	"github.com/javaarchive/nerine-tweaks/keychain"
	"github.com/javaarchive/nerine-tweaks/runtime"
	"github.com/javaarchive/nerine-tweaks/secrets"
	"github.com/javaarchive/nerine-tweaks/utils"
)

// Control plane ports of a deployed host. The proxy admin listener is fixed
// by the synthesized config; the runtime mTLS port matches the daemon.json
// shipped with the platform.
const (
	proxyAdminPort    = 995
	dockerRuntimePort = 996
)

// File layout under the install path.
const (
	KeychainFile = "keychain.json"
	KeysArchive  = "keys.tar.gz"
	EnvFile      = ".env"
	EventFile    = "event.toml"

	keysDirName  = "keys"
	proxyDirName = "proxy"
)

// Trust domain names. Each gets its own CA, server leaf and client leaf.
const (
	domainDocker = "docker"
	domainCaddy  = "caddy"
)

// artifacts fetched by reference from the release endpoint.
var artifacts = []struct {
	name string
	mode os.FileMode
}{
	// proxy binary prebuilt with the dynamic_router plugin
	{name: "caddy", mode: 0o755},
	{name: "docker-compose.yml", mode: 0o644},
}

// Bootstrap drives one bootstrap run over an immutable configuration.
type Bootstrap struct {
	cfg    *config.Config
	prompt config.Prompter
	fetch  *fetch.Client

	// issued material per trust domain, filled by issueTrustDomains
	docker *trustDomain
	caddy  *trustDomain
}

// trustDomain is the issued material of one control plane.
type trustDomain struct {
	name   string
	ca     *cert.Certificate
	server *cert.Certificate
	client *cert.Certificate
}

// New returns a Bootstrap for the given configuration. A nil prompter makes
// every confirmation decline, which keeps unattended runs from hanging.
func New(cfg *config.Config, prompt config.Prompter) *Bootstrap {
	return &Bootstrap{
		cfg:    cfg,
		prompt: prompt,
		fetch:  fetch.NewClient(),
	}
}

// Run executes all bootstrap stages in order.
func (b *Bootstrap) Run(ctx context.Context) error {
	if err := b.checkPreconditions(ctx); err != nil {
		return err
	}

	if err := b.createLayout(); err != nil {
		return err
	}

	if err := b.issueTrustDomains(); err != nil {
		return err
	}

	if err := b.writeKeychain(); err != nil {
		return err
	}

	if err := b.archiveKeys(); err != nil {
		return err
	}

	if err := b.writeProxyConfigs(); err != nil {
		return err
	}

	if err := b.writePlatformFiles(); err != nil {
		return err
	}

	if err := b.fetchArtifacts(ctx); err != nil {
		return err
	}

	if err := b.removeKeyDir(); err != nil {
		return err
	}

	log.Infof("bootstrap complete, install path %s", b.cfg.InstallPath)
	return nil
}

func (b *Bootstrap) keysDir() string {
	return filepath.Join(b.cfg.InstallPath, keysDirName)
}

func (b *Bootstrap) proxyDir() string {
	return filepath.Join(b.cfg.InstallPath, proxyDirName)
}

func (b *Bootstrap) keychainPath() string {
	return filepath.Join(b.cfg.InstallPath, KeychainFile)
}

// checkPreconditions fails fast before anything on disk is touched.
func (b *Bootstrap) checkPreconditions(ctx context.Context) error {
	if !b.cfg.LocalDev {
		if err := utils.CheckRootPrivs(); err != nil {
			return err
		}
	}

	if err := b.confirmRekey(); err != nil {
		return err
	}

	if b.cfg.LocalDev {
		cli, cleanup, err := runtime.NewClient(keychain.LocalBackend())
		if err != nil {
			return err
		}
		defer cleanup()
		defer cli.Close()

		if err := runtime.Ping(ctx, cli); err != nil {
			return err
		}
	}

	return nil
}

// confirmRekey guards an existing credential bundle. Re-keying invalidates
// every credential the orchestrator already holds, so it needs an explicit
// yes; declining aborts with the bundle untouched.
func (b *Bootstrap) confirmRekey() error {
	if !utils.FileExists(b.keychainPath()) {
		return nil
	}

	if b.cfg.AssumeYes {
		log.Warnf("re-keying %s, previously issued credentials stop working", b.keychainPath())
		return nil
	}

	ok, err := config.Confirm(b.prompt, fmt.Sprintf(
		"%s already exists; re-keying invalidates all issued credentials.", b.keychainPath()))
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("aborted, existing %s left untouched", b.keychainPath())
	}

	log.Warnf("re-keying %s", b.keychainPath())
	return nil
}

func (b *Bootstrap) createLayout() error {
	utils.CreateDirectory(b.cfg.InstallPath, 0o755)
	utils.CreateDirectory(b.proxyDir(), 0o755)
	utils.CreateDirectory(b.keysDir(), 0o700)
	for _, domain := range []string{domainDocker, domainCaddy} {
		utils.CreateDirectory(filepath.Join(b.keysDir(), domain), 0o700)
	}
	return nil
}

// issueTrustDomains mints a CA, a server leaf and a client leaf per control
// plane and writes the raw material under the key directory.
func (b *Bootstrap) issueTrustDomains() error {
	hosts := []string{b.cfg.ChallengesDomain}
	if b.cfg.ExternalIP != "" {
		hosts = append(hosts, b.cfg.ExternalIP)
	}

	var err error
	if b.docker, err = b.issueDomain(domainDocker, hosts); err != nil {
		return err
	}
	if b.caddy, err = b.issueDomain(domainCaddy, hosts); err != nil {
		return err
	}
	return nil
}

func (b *Bootstrap) issueDomain(name string, hosts []string) (*trustDomain, error) {
	log.Infof("issuing certificates for the %s control plane", name)

	ca := cert.NewCA()

	caCert, err := ca.GenerateCACert(&cert.CACSRInput{CommonName: b.cfg.CACommonName})
	if err != nil {
		return nil, errors.Wrapf(err, "failed generating %s CA", name)
	}

	serverCert, err := ca.GenerateServerCert(&cert.ServerCSRInput{
		CommonName: name,
		Hosts:      hosts,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed issuing %s server certificate", name)
	}

	clientCert, err := ca.GenerateClientCert()
	if err != nil {
		return nil, errors.Wrapf(err, "failed issuing %s client certificate", name)
	}

	td := &trustDomain{
		name:   name,
		ca:     caCert,
		server: serverCert,
		client: clientCert,
	}
	return td, td.write(filepath.Join(b.keysDir(), name))
}

func (d *trustDomain) write(dir string) error {
	if err := d.ca.Write(
		filepath.Join(dir, "ca.pem"),
		filepath.Join(dir, "ca-key.pem"), ""); err != nil {
		return err
	}
	if err := d.server.Write(
		filepath.Join(dir, "server.pem"),
		filepath.Join(dir, "server-key.pem"),
		filepath.Join(dir, "server.csr")); err != nil {
		return err
	}
	return d.client.Write(
		filepath.Join(dir, "client.pem"),
		filepath.Join(dir, "client-key.pem"),
		filepath.Join(dir, "client.csr"))
}

// writeKeychain assembles and writes the credential bundle the deployment
// orchestrator consumes.
func (b *Bootstrap) writeKeychain() error {
	hosts := []keychain.Host{b.defaultHost()}

	log.Infof("writing credential bundle to %s", b.keychainPath())
	return keychain.Write(b.keychainPath(), hosts)
}

// defaultHost builds the "default" bundle entry for the configured topology.
func (b *Bootstrap) defaultHost() keychain.Host {
	h := keychain.Host{
		ID: keychain.DefaultHostID,
		Caddy: keychain.Caddy{
			Base:   b.cfg.ChallengesDomain,
			CACert: string(b.caddy.ca.Cert),
			Cert:   string(b.caddy.client.Cert),
			Key:    string(b.caddy.client.Key),
		},
		Docker: keychain.Docker{
			ImagePrefix: "nerine",
			Repo:        filepath.Join(b.cfg.InstallPath, "challenges"),
		},
	}

	if b.cfg.LocalDev {
		h.Caddy.Endpoint = "http://" + caddy.AdminListenLocal
		h.Docker.Docker = keychain.LocalBackend()
		return h
	}

	h.Caddy.Endpoint = fmt.Sprintf("https://%s:%d", b.cfg.ExternalIP, proxyAdminPort)
	h.Docker.Docker = keychain.SSLBackend(
		fmt.Sprintf("%s:%d", b.cfg.ExternalIP, dockerRuntimePort),
		b.docker.ca.Cert, b.docker.client.Cert, b.docker.client.Key)
	return h
}

// archiveKeys packs the raw key directory for transfer to the proxy and
// runtime hosts. The archive outlives the directory itself.
func (b *Bootstrap) archiveKeys() error {
	out := filepath.Join(b.cfg.InstallPath, KeysArchive)
	log.Infof("archiving key material to %s", out)
	return utils.TarGzDir(b.keysDir(), out)
}

// topologies are the deployment layouts a proxy config is emitted for.
var topologies = []string{"co-located", "split-host", "layered"}

// writeProxyConfigs emits one proxy JSON per supported topology plus the
// platform Caddyfile.
func (b *Bootstrap) writeProxyConfigs() error {
	for _, topology := range topologies {
		opts, err := b.proxyOptions(topology)
		if err != nil {
			return err
		}

		cfg, err := caddy.Synthesize(opts)
		if err != nil {
			return errors.Wrapf(err, "failed synthesizing %s proxy config", topology)
		}

		enc, err := cfg.Encode()
		if err != nil {
			return err
		}

		path := filepath.Join(b.proxyDir(), topology+".json")
		log.Infof("writing proxy config %s", path)
		if err := utils.CreateFile(path, string(enc)); err != nil {
			return err
		}
	}

	caddyfile, err := caddy.Caddyfile(b.cfg.PlatformDomain, b.cfg.EnableHTTPS)
	if err != nil {
		return err
	}
	return utils.CreateFile(filepath.Join(b.proxyDir(), "Caddyfile"), caddyfile)
}

func (b *Bootstrap) proxyOptions(topology string) (caddy.Options, error) {
	opts := caddy.Options{
		PlatformDomain:        b.cfg.PlatformDomain,
		ChallengesDomain:      b.cfg.ChallengesDomain,
		ExternalIP:            b.cfg.ExternalIP,
		AdminClientCert:       b.caddy.client.Cert,
		EnableHTTPS:           b.cfg.EnableHTTPS,
		AddPlatformRoutes:     b.cfg.AddPlatformRoutes,
		TrustProxy:            b.cfg.TrustProxy,
		EnableCFDNSChallenges: b.cfg.EnableCFDNSChallenges,
		BindHost:              b.cfg.BindHost,
		HTTPPort:              b.cfg.HTTPPort,
		HTTPSPort:             b.cfg.HTTPSPort,
	}

	switch topology {
	case "co-located":
		// everything on one host, admin stays on the loopback listener
		opts.LocalOnly = true
	case "split-host":
		// proxy on its own host, deployer reaches the remote admin port
	case "layered":
		// proxy behind an outer load balancer terminating on this host
		opts.BindHost = "127.0.0.1"
		opts.HTTPPort = 8080
		opts.HTTPSPort = 8443
		opts.TrustProxy = true
	default:
		return caddy.Options{}, errors.Errorf("unknown topology %q", topology)
	}

	return opts, nil
}

// writePlatformFiles mints fresh secrets into the platform env file and
// writes the event descriptor. Secrets rotate on every run.
func (b *Bootstrap) writePlatformFiles() error {
	s, err := secrets.Generate()
	if err != nil {
		return err
	}

	envPath := filepath.Join(b.cfg.InstallPath, EnvFile)
	log.Infof("writing platform secrets to %s", envPath)
	if err := secrets.WriteEnv(envPath, s.Env(b.cfg.PlatformDomain, b.cfg.EnableHTTPS)); err != nil {
		return err
	}

	return event.New(b.cfg.PlatformDomain).Write(filepath.Join(b.cfg.InstallPath, EventFile))
}

func (b *Bootstrap) fetchArtifacts(ctx context.Context) error {
	if b.cfg.SkipFetch {
		log.Warn("skipping artifact download")
		return nil
	}

	for _, a := range artifacts {
		dest := filepath.Join(b.cfg.InstallPath, a.name)
		if err := b.fetch.Download(ctx, b.cfg.ArtifactRef, a.name, dest, a.mode); err != nil {
			return err
		}
	}
	return nil
}

// removeKeyDir drops the raw key working directory. Keys live on in the
// bundle and the transfer archive only.
func (b *Bootstrap) removeKeyDir() error {
	log.Debugf("removing key working directory %s", b.keysDir())
	return os.RemoveAll(b.keysDir())
}
