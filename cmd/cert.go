package cmd

import (
	"os"
	gopath "path"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javaarchive/nerine-tweaks/cert"
	"github.com/javaarchive/nerine-tweaks/utils"
)

var (
	commonName     string
	certOutPath    string
	caNamePrefix   string
	certNamePrefix string
	certHosts      []string
	caCertPath     string
	caKeyPath      string
	clientCert     bool
)

func init() {
	RootCmd.AddCommand(certCmd)
	certCmd.AddCommand(caCmd)
	certCmd.AddCommand(signCertCmd)
	caCmd.AddCommand(caCreateCmd)

	caCreateCmd.Flags().StringVarP(&commonName, "cn", "", "", "Common Name")
	caCreateCmd.Flags().StringVarP(&certOutPath, "path", "p", "",
		"path to write certificates to. Default is current working directory")
	caCreateCmd.Flags().StringVarP(&caNamePrefix, "name", "n", "ca", "certificate/key filename prefix")

	signCertCmd.Flags().StringSliceVarP(&certHosts, "hosts", "", []string{},
		"comma separated list of hosts of a certificate")
	signCertCmd.Flags().StringVarP(&commonName, "cn", "", "", "Common Name")
	signCertCmd.Flags().StringVarP(&caCertPath, "ca-cert", "", "", "Path to CA certificate")
	signCertCmd.Flags().StringVarP(&caKeyPath, "ca-key", "", "", "Path to CA private key")
	signCertCmd.Flags().BoolVarP(&clientCert, "client", "", false,
		"issue a client certificate instead of a server certificate")
	signCertCmd.Flags().StringVarP(&certOutPath, "path", "p", "",
		"path to write certificate and key to. Default is current working directory")
	signCertCmd.Flags().StringVarP(&certNamePrefix, "name", "n", "cert", "certificate/key filename prefix")

	_ = signCertCmd.MarkFlagRequired("ca-cert")
	_ = signCertCmd.MarkFlagRequired("ca-key")
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "TLS certificate operations",
}

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "certificate authority operations",
}

var caCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "create ca certificate and key",
	RunE:  createCA,
}

var signCertCmd = &cobra.Command{
	Use:   "sign",
	Short: "create and sign certificate",
	RunE:  signCert,
}

// createCA creates a new CA certificate and key and writes them to the specified path.
func createCA(_ *cobra.Command, _ []string) error {
	var err error
	if certOutPath == "" {
		certOutPath, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	ca := cert.NewCA()

	caCert, err := ca.GenerateCACert(&cert.CACSRInput{CommonName: commonName})
	if err != nil {
		return err
	}

	utils.CreateDirectory(certOutPath, 0o755)

	return caCert.Write(
		gopath.Join(certOutPath, caNamePrefix+".pem"),
		gopath.Join(certOutPath, caNamePrefix+"-key.pem"),
		"",
	)
}

// signCert creates a leaf certificate and signs it with the CA loaded from disk.
func signCert(_ *cobra.Command, _ []string) error {
	var err error
	if certOutPath == "" {
		certOutPath, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	caCert, err := cert.NewCertificateFromFile(caCertPath, caKeyPath, "")
	if err != nil {
		return err
	}

	ca := cert.NewCA()
	if err := ca.SetCACert(caCert); err != nil {
		return err
	}

	var leaf *cert.Certificate
	if clientCert {
		log.Info("creating and signing client certificate")

		leaf, err = ca.GenerateClientCert()
	} else {
		log.Infof("creating and signing server certificate: Hosts=%q, CN=%s", certHosts, commonName)

		leaf, err = ca.GenerateServerCert(&cert.ServerCSRInput{
			CommonName: commonName,
			Hosts:      certHosts,
		})
	}
	if err != nil {
		return err
	}

	utils.CreateDirectory(certOutPath, 0o755)

	return leaf.Write(
		gopath.Join(certOutPath, certNamePrefix+".pem"),
		gopath.Join(certOutPath, certNamePrefix+"-key.pem"),
		gopath.Join(certOutPath, certNamePrefix+".csr"),
	)
}
