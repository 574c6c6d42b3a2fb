package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/javaarchive/nerine-tweaks/bootstrap"
	"github.com/javaarchive/nerine-tweaks/config"
)

// bootstrapFlagKeys maps bootstrap command flags to the resolver keys they
// override. A flag left untouched falls through to the environment, the
// interactive prompt and finally the documented default.
var bootstrapFlagKeys = map[string]string{
	"platform-domain": config.KeyPlatformDomain,
	"challs-domain":   config.KeyChallengesDomain,
	"external-ip":     config.KeyExternalIP,
	"ca-cn":           config.KeyCACommonName,
	"install-path":    config.KeyInstallPath,
	"ref":             config.KeyArtifactRef,
	"local-dev":       config.KeyLocalDev,
	"https":           config.KeyEnableHTTPS,
	"platform-routes": config.KeyAddPlatformRts,
	"trust-proxy":     config.KeyTrustProxy,
	"cf-dns":          config.KeyCFDNSChallenges,
	"bind-host":       config.KeyBindHost,
	"http-port":       config.KeyHTTPPort,
	"https-port":      config.KeyHTTPSPort,
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "issue trust material and write all deployment artifacts",
	RunE:  runBootstrap,
}

func init() {
	RootCmd.AddCommand(bootstrapCmd)

	f := bootstrapCmd.Flags()
	f.String("platform-domain", config.DefaultPlatformDomain, "domain of the platform API and frontend")
	f.String("challs-domain", "", "parent domain of all challenge vhosts")
	f.String("external-ip", "", "address challenge traffic reaches the proxy host on")
	f.String("ca-cn", "", "common name of the issued certificate authorities")
	f.String("install-path", config.DefaultInstallPath, "directory all artifacts are written to")
	f.String("ref", config.DefaultArtifactRef, "git reference of the prebuilt artifacts")
	f.Bool("local-dev", false, "single-host development topology")
	f.Bool("https", false, "serve the platform over HTTPS")
	f.Bool("platform-routes", true, "route the platform vhost through the proxy")
	f.Bool("trust-proxy", false, "trust forwarded headers from private ranges")
	f.Bool("cf-dns", false, "provision certificates via cloudflare DNS challenges")
	f.String("bind-host", "", "bind address of the proxy listeners, empty for all interfaces")
	f.Int("http-port", 80, "HTTP listener port")
	f.Int("https-port", 443, "HTTPS listener port")

	f.BoolP("yes", "y", false, "answer the re-key confirmation with yes")
	f.Bool("skip-fetch", false, "skip artifact downloads, for air-gapped installs")
	f.Bool("non-interactive", false, "never prompt, unresolved inputs use defaults")
}

func runBootstrap(cobraCmd *cobra.Command, _ []string) error {
	overrides := map[string]string{}
	cobraCmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := bootstrapFlagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})

	nonInteractive, err := cobraCmd.Flags().GetBool("non-interactive")
	if err != nil {
		return err
	}

	var prompt config.Prompter
	if !nonInteractive {
		if p := config.NewTerminalPrompter(); p != nil {
			prompt = p
		}
	}

	cfg, err := config.Load(config.NewResolver(overrides, prompt))
	if err != nil {
		return err
	}

	if cfg.AssumeYes, err = cobraCmd.Flags().GetBool("yes"); err != nil {
		return err
	}
	if cfg.SkipFetch, err = cobraCmd.Flags().GetBool("skip-fetch"); err != nil {
		return err
	}

	return bootstrap.New(cfg, prompt).Run(cobraCmd.Context())
}
