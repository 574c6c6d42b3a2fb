package cert

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Issuance policy is fixed: lifetimes, key sizes and extensions are not
// negotiable per call. A control-plane identity is either a server or a
// client, never both.
const (
	// KeySize is the RSA modulus size for CA and leaf keys.
	KeySize = 4096
	// Validity is the lifetime of the CA and every leaf it signs.
	Validity = 365 * 24 * time.Hour
	// ClientCN is the fixed subject CN of client leaves.
	ClientCN = "client"
	// DefaultCACommonName is used when the operator supplies no CN.
	DefaultCACommonName = "nerine"
)

// CA is a Certificate Authority for one trust domain.
type CA struct {
	key  crypto.PrivateKey
	cert *x509.Certificate

	// serial of the last issued certificate. Strictly increases across
	// every issuance from this CA, the CA certificate included.
	serial int64
}

// NewCA initializes a Certificate Authority.
func NewCA() *CA {
	return &CA{}
}

// nextSerial returns a fresh, strictly increasing serial number.
func (ca *CA) nextSerial() *big.Int {
	ca.serial++
	return big.NewInt(ca.serial)
}

// SetCACert sets the CA certificate with the provided certificate and key.
func (ca *CA) SetCACert(cert *Certificate) error {
	var err error

	// PEM to DER
	pbCert, _ := pem.Decode(cert.Cert)

	ca.cert, err = x509.ParseCertificate(pbCert.Bytes)
	if err != nil {
		return err
	}

	ca.key, err = ssh.ParseRawPrivateKey(cert.Key)
	if err != nil {
		return err
	}

	// resume the serial sequence past the loaded CA certificate
	if s := ca.cert.SerialNumber.Int64(); s > ca.serial {
		ca.serial = s
	}

	return nil
}

// GenerateCACert generates a self-signed CA certificate and key based on the
// provided input and arms the CA to sign leaves with it.
func (ca *CA) GenerateCACert(input *CACSRInput) (*Certificate, error) {
	commonName := input.CommonName
	if commonName == "" {
		commonName = DefaultCACommonName
	}

	certTemplate := &x509.Certificate{
		SerialNumber: ca.nextSerial(),
		Subject: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(Validity),
		IsCA:                  true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	caPrivKey, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, err
	}

	caBytes, err := x509.CreateCertificate(rand.Reader, certTemplate, certTemplate, &caPrivKey.PublicKey, caPrivKey)
	if err != nil {
		return nil, err
	}

	ca.key = caPrivKey
	ca.cert, err = x509.ParseCertificate(caBytes)
	if err != nil {
		return nil, err
	}

	return newPEMCertificate(caBytes, caPrivKey, nil), nil
}

// GenerateServerCert generates and signs a server leaf certificate.
// The SANs of the issued certificate are the union of the DNS names and IPs
// found in input.Hosts plus the loopback address. The certificate is
// restricted to server authentication.
func (ca *CA) GenerateServerCert(input *ServerCSRInput) (*Certificate, error) {
	dns, ip := parseHostsInput(input.Hosts)

	loopback := net.IPv4(127, 0, 0, 1)
	hasLoopback := false
	for _, i := range ip {
		if i.Equal(loopback) {
			hasLoopback = true
		}
	}
	if !hasLoopback {
		ip = append(ip, loopback)
	}

	return ca.signLeaf(&x509.Certificate{
		SerialNumber: ca.nextSerial(),
		Subject: pkix.Name{
			CommonName: input.CommonName,
		},
		DNSNames:           dns,
		IPAddresses:        ip,
		NotBefore:          time.Now(),
		NotAfter:           time.Now().Add(Validity),
		SignatureAlgorithm: x509.SHA256WithRSA,
		ExtKeyUsage:        []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		KeyUsage:           x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	})
}

// GenerateClientCert generates and signs a client leaf certificate.
// Client leaves carry no SANs and are restricted to client authentication.
func (ca *CA) GenerateClientCert() (*Certificate, error) {
	return ca.signLeaf(&x509.Certificate{
		SerialNumber: ca.nextSerial(),
		Subject: pkix.Name{
			CommonName: ClientCN,
		},
		NotBefore:          time.Now(),
		NotAfter:           time.Now().Add(Validity),
		SignatureAlgorithm: x509.SHA256WithRSA,
		ExtKeyUsage:        []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		KeyUsage:           x509.KeyUsageDigitalSignature,
	})
}

// signLeaf generates a leaf key and CSR and signs the leaf with the CA.
func (ca *CA) signLeaf(certTemplate *x509.Certificate) (*Certificate, error) {
	if ca.cert == nil || ca.key == nil {
		return nil, errCANotInitialized
	}

	newPrivKey, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, err
	}

	csrBytes, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:            certTemplate.Subject,
		DNSNames:           certTemplate.DNSNames,
		IPAddresses:        certTemplate.IPAddresses,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}, newPrivKey)
	if err != nil {
		return nil, err
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, certTemplate, ca.cert, &newPrivKey.PublicKey, ca.key)
	if err != nil {
		return nil, err
	}

	return newPEMCertificate(certBytes, newPrivKey, csrBytes), nil
}

// newPEMCertificate converts DER cert, key and optional CSR bytes into a
// PEM-encoded Certificate.
func newPEMCertificate(certDER []byte, key *rsa.PrivateKey, csrDER []byte) *Certificate {
	certPEM := new(bytes.Buffer)
	pem.Encode(certPEM, &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	})

	keyPEM := new(bytes.Buffer)
	pem.Encode(keyPEM, &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	c := &Certificate{
		Cert: certPEM.Bytes(),
		Key:  keyPEM.Bytes(),
	}

	if len(csrDER) > 0 {
		csrPEM := new(bytes.Buffer)
		pem.Encode(csrPEM, &pem.Block{
			Type:  "CERTIFICATE REQUEST",
			Bytes: csrDER,
		})
		c.Csr = csrPEM.Bytes()
	}

	return c
}

func parseHostsInput(hosts []string) ([]string, []net.IP) {
	var dns []string
	var ip []net.IP

	for _, host := range hosts {
		if parsed := net.ParseIP(host); parsed != nil {
			ip = append(ip, parsed)
		} else {
			dns = append(dns, host)
		}
	}

	return dns, ip
}
