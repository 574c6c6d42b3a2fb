package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javaarchive/nerine-tweaks/secrets"
)

var (
	envOutput      string
	envDomain      string
	envEnableHTTPS bool
)

func init() {
	RootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envGenerateCmd)

	f := envGenerateCmd.Flags()
	f.StringVarP(&envOutput, "output", "o", ".env", "output file")
	f.StringVar(&envDomain, "platform-domain", "", "domain of the platform API and frontend")
	f.BoolVar(&envEnableHTTPS, "https", false, "platform is served over TLS")

	_ = envGenerateCmd.MarkFlagRequired("platform-domain")
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "platform environment operations",
}

var envGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "mint fresh platform secrets into an env file",
	Long: "mint fresh platform secrets into an env file. " +
		"Every invocation rotates all secrets; already running platform processes keep their old ones until restarted.",
	RunE: generateEnv,
}

func generateEnv(_ *cobra.Command, _ []string) error {
	s, err := secrets.Generate()
	if err != nil {
		return err
	}

	log.Infof("writing platform secrets to %s", envOutput)
	return secrets.WriteEnv(envOutput, s.Env(envDomain, envEnableHTTPS))
}
