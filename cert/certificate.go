package cert

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/javaarchive/nerine-tweaks/utils"
)

// Certificate stores the combination of Cert and Key along with the CSR if available.
type Certificate struct {
	Cert []byte
	Key  []byte
	Csr  []byte
}

// NewCertificateFromFile creates a new Certificate by loading cert, key and csr (if exists) from respecting files.
func NewCertificateFromFile(certFilePath, keyFilePath, csrFilePath string) (*Certificate, error) {
	cert := &Certificate{}

	_, err := os.Stat(certFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed loading cert file %v", err)
	}
	cert.Cert, err = utils.ReadFileContent(certFilePath)
	if err != nil {
		return nil, err
	}

	_, err = os.Stat(keyFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed loading key file %v", err)
	}
	cert.Key, err = utils.ReadFileContent(keyFilePath)
	if err != nil {
		return nil, err
	}

	// the CSR might not be there, which is not an issue, just skip it
	if csrFilePath != "" {
		_, err = os.Stat(csrFilePath)
		if err != nil {
			log.Debugf("failed loading csr %s, continuing anyways", csrFilePath)
		} else {
			cert.Csr, err = utils.ReadFileContent(csrFilePath)
			if err != nil {
				return nil, err
			}
		}
	}

	return cert, nil
}

// Write writes the cert, key and csr to disk. The key is written with
// owner-only permissions.
func (c *Certificate) Write(certPath, keyPath, csrPath string) error {
	log.Debugf("writing cert file to %s", certPath)

	err := utils.CreateFile(certPath, string(c.Cert))
	if err != nil {
		return err
	}

	log.Debugf("writing key file to %s", keyPath)
	err = utils.WriteSecretFile(keyPath, c.Key)
	if err != nil {
		return err
	}

	// save csr if its length is >0 and path is not empty
	if len(c.Csr) != 0 && csrPath != "" {
		log.Debugf("writing csr file to %s", csrPath)

		err = utils.CreateFile(csrPath, string(c.Csr))
		if err != nil {
			return err
		}
	}

	return nil
}
