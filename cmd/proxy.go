package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javaarchive/nerine-tweaks/caddy"
	"github.com/javaarchive/nerine-tweaks/utils"
)

var proxyOpts caddy.Options

var (
	adminClientCertPath string
	proxyOutput         string
)

func init() {
	RootCmd.AddCommand(proxyCmd)
	proxyCmd.AddCommand(proxyConfigCmd)
	proxyCmd.AddCommand(caddyfileCmd)

	f := proxyConfigCmd.Flags()
	f.StringVar(&proxyOpts.PlatformDomain, "platform-domain", "", "domain of the platform API and frontend")
	f.StringVar(&proxyOpts.ChallengesDomain, "challs-domain", "", "parent domain of all challenge vhosts")
	f.StringVar(&proxyOpts.ExternalIP, "external-ip", "", "address added to the admin identity")
	f.StringVar(&adminClientCertPath, "client-cert", "",
		"PEM client certificate allow-listed on the remote admin endpoint")
	f.BoolVar(&proxyOpts.LocalOnly, "local-only", false, "keep the admin API on the loopback listener")
	f.BoolVar(&proxyOpts.EnableHTTPS, "https", false, "serve the vhosts over TLS as well")
	f.BoolVar(&proxyOpts.AddPlatformRoutes, "platform-routes", true, "route the platform vhost")
	f.BoolVar(&proxyOpts.TrustProxy, "trust-proxy", false, "trust forwarded headers from private ranges")
	f.BoolVar(&proxyOpts.EnableCFDNSChallenges, "cf-dns", false,
		"provision certificates via cloudflare DNS challenges")
	f.StringVar(&proxyOpts.BindHost, "bind-host", "", "bind address, empty for all interfaces")
	f.IntVar(&proxyOpts.HTTPPort, "http-port", caddy.DefaultHTTPPort, "HTTP listener port")
	f.IntVar(&proxyOpts.HTTPSPort, "https-port", caddy.DefaultHTTPSPort, "HTTPS listener port")
	f.StringVarP(&proxyOutput, "output", "o", "", "output file, stdout when empty")

	_ = proxyConfigCmd.MarkFlagRequired("challs-domain")

	cf := caddyfileCmd.Flags()
	cf.StringVar(&proxyOpts.PlatformDomain, "platform-domain", "", "domain of the platform API and frontend")
	cf.BoolVar(&proxyOpts.EnableHTTPS, "https", false, "serve the platform over TLS")
	cf.StringVarP(&proxyOutput, "output", "o", "", "output file, stdout when empty")

	_ = caddyfileCmd.MarkFlagRequired("platform-domain")
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "reverse proxy configuration operations",
}

var proxyConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "synthesize the proxy JSON configuration",
	RunE:  generateProxyConfig,
}

var caddyfileCmd = &cobra.Command{
	Use:   "caddyfile",
	Short: "render the platform vhost Caddyfile",
	RunE:  generateCaddyfile,
}

func generateProxyConfig(_ *cobra.Command, _ []string) error {
	if !proxyOpts.LocalOnly {
		if adminClientCertPath == "" {
			return fmt.Errorf("--client-cert is required unless --local-only is set")
		}

		var err error
		proxyOpts.AdminClientCert, err = utils.ReadFileContent(adminClientCertPath)
		if err != nil {
			return err
		}
	}

	cfg, err := caddy.Synthesize(proxyOpts)
	if err != nil {
		return err
	}

	enc, err := cfg.Encode()
	if err != nil {
		return err
	}

	return writeOutput(proxyOutput, append(enc, '\n'))
}

func generateCaddyfile(_ *cobra.Command, _ []string) error {
	caddyfile, err := caddy.Caddyfile(proxyOpts.PlatformDomain, proxyOpts.EnableHTTPS)
	if err != nil {
		return err
	}

	return writeOutput(proxyOutput, []byte(caddyfile))
}

func writeOutput(path string, content []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(content)
		return err
	}
	return utils.CreateFile(path, string(content))
}
