package cert

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func parsePEMCert(t *testing.T, pemBytes []byte) *x509.Certificate {
	t.Helper()

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		t.Fatalf("failed decoding PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("failed parsing certificate: %v", err)
	}

	return cert
}

func TestCAIssuance(t *testing.T) {
	ca := NewCA()

	caCert, err := ca.GenerateCACert(&CACSRInput{CommonName: ""})
	if err != nil {
		t.Fatalf("GenerateCACert() error = %v", err)
	}

	parsedCA := parsePEMCert(t, caCert.Cert)

	t.Run("ca self signed", func(t *testing.T) {
		if !parsedCA.IsCA {
			t.Error("CA certificate is not marked as CA")
		}
		if parsedCA.Subject.CommonName != DefaultCACommonName {
			t.Errorf("CN = %q, want fallback %q", parsedCA.Subject.CommonName, DefaultCACommonName)
		}
		if got := parsedCA.PublicKey.(*rsa.PublicKey).N.BitLen(); got != KeySize {
			t.Errorf("key size = %d, want %d", got, KeySize)
		}
		if got := parsedCA.NotAfter.Sub(parsedCA.NotBefore); got != Validity {
			t.Errorf("validity window = %v, want %v", got, Validity)
		}
		if err := parsedCA.CheckSignatureFrom(parsedCA); err != nil {
			t.Errorf("CA certificate is not self-signed: %v", err)
		}
	})

	serverCert, err := ca.GenerateServerCert(&ServerCSRInput{
		CommonName: "docker",
		Hosts:      []string{"challs.example.com", "203.0.113.9"},
	})
	if err != nil {
		t.Fatalf("GenerateServerCert() error = %v", err)
	}

	parsedServer := parsePEMCert(t, serverCert.Cert)

	t.Run("server leaf SANs", func(t *testing.T) {
		wantDNS := map[string]bool{"challs.example.com": false}
		for _, d := range parsedServer.DNSNames {
			wantDNS[d] = true
		}
		if !wantDNS["challs.example.com"] {
			t.Errorf("DNS SANs = %v, missing declared hostname", parsedServer.DNSNames)
		}

		wantIPs := map[string]bool{"203.0.113.9": false, "127.0.0.1": false}
		for _, ip := range parsedServer.IPAddresses {
			wantIPs[ip.String()] = true
		}
		for ip, found := range wantIPs {
			if !found {
				t.Errorf("IP SANs = %v, missing %s", parsedServer.IPAddresses, ip)
			}
		}
	})

	t.Run("server leaf EKU", func(t *testing.T) {
		if len(parsedServer.ExtKeyUsage) != 1 || parsedServer.ExtKeyUsage[0] != x509.ExtKeyUsageServerAuth {
			t.Errorf("EKU = %v, want serverAuth only", parsedServer.ExtKeyUsage)
		}
	})

	t.Run("server leaf chains to CA", func(t *testing.T) {
		roots := x509.NewCertPool()
		roots.AddCert(parsedCA)

		_, err := parsedServer.Verify(x509.VerifyOptions{
			Roots:       roots,
			DNSName:     "challs.example.com",
			CurrentTime: time.Now(),
			KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		if err != nil {
			t.Errorf("server leaf does not verify against CA: %v", err)
		}
	})

	clientCert, err := ca.GenerateClientCert()
	if err != nil {
		t.Fatalf("GenerateClientCert() error = %v", err)
	}

	parsedClient := parsePEMCert(t, clientCert.Cert)

	t.Run("client leaf", func(t *testing.T) {
		if parsedClient.Subject.CommonName != ClientCN {
			t.Errorf("CN = %q, want %q", parsedClient.Subject.CommonName, ClientCN)
		}
		if len(parsedClient.DNSNames) != 0 || len(parsedClient.IPAddresses) != 0 {
			t.Errorf("client leaf carries SANs: DNS=%v IP=%v", parsedClient.DNSNames, parsedClient.IPAddresses)
		}
		if len(parsedClient.ExtKeyUsage) != 1 || parsedClient.ExtKeyUsage[0] != x509.ExtKeyUsageClientAuth {
			t.Errorf("EKU = %v, want clientAuth only", parsedClient.ExtKeyUsage)
		}
		if err := parsedClient.CheckSignatureFrom(parsedCA); err != nil {
			t.Errorf("client leaf not signed by CA: %v", err)
		}
	})

	t.Run("serials strictly increase", func(t *testing.T) {
		caSerial := parsedCA.SerialNumber.Int64()
		serverSerial := parsedServer.SerialNumber.Int64()
		clientSerial := parsedClient.SerialNumber.Int64()

		if !(caSerial < serverSerial && serverSerial < clientSerial) {
			t.Errorf("serials do not strictly increase: ca=%d server=%d client=%d",
				caSerial, serverSerial, clientSerial)
		}
	})

	t.Run("leaf carries CSR", func(t *testing.T) {
		block, _ := pem.Decode(serverCert.Csr)
		if block == nil || block.Type != "CERTIFICATE REQUEST" {
			t.Fatalf("server leaf CSR missing or malformed")
		}
		csr, err := x509.ParseCertificateRequest(block.Bytes)
		if err != nil {
			t.Fatalf("failed parsing CSR: %v", err)
		}
		if csr.Subject.CommonName != "docker" {
			t.Errorf("CSR CN = %q, want %q", csr.Subject.CommonName, "docker")
		}
	})
}

func TestSetCACert(t *testing.T) {
	ca := NewCA()

	caCert, err := ca.GenerateCACert(&CACSRInput{CommonName: "nerine test ca"})
	if err != nil {
		t.Fatalf("GenerateCACert() error = %v", err)
	}

	// a CA reloaded from PEM material must be able to sign leaves
	reloaded := NewCA()
	if err := reloaded.SetCACert(caCert); err != nil {
		t.Fatalf("SetCACert() error = %v", err)
	}

	clientCert, err := reloaded.GenerateClientCert()
	if err != nil {
		t.Fatalf("GenerateClientCert() after reload error = %v", err)
	}

	parsedCA := parsePEMCert(t, caCert.Cert)
	parsedClient := parsePEMCert(t, clientCert.Cert)

	if err := parsedClient.CheckSignatureFrom(parsedCA); err != nil {
		t.Errorf("leaf from reloaded CA not signed by original CA: %v", err)
	}

	if parsedClient.SerialNumber.Int64() <= parsedCA.SerialNumber.Int64() {
		t.Errorf("reloaded CA serial did not advance past the CA certificate")
	}
}

func TestGenerateServerCertDeduplicatesLoopback(t *testing.T) {
	ca := NewCA()
	if _, err := ca.GenerateCACert(&CACSRInput{}); err != nil {
		t.Fatalf("GenerateCACert() error = %v", err)
	}

	serverCert, err := ca.GenerateServerCert(&ServerCSRInput{
		CommonName: "caddy",
		Hosts:      []string{"127.0.0.1"},
	})
	if err != nil {
		t.Fatalf("GenerateServerCert() error = %v", err)
	}

	parsed := parsePEMCert(t, serverCert.Cert)

	count := 0
	for _, ip := range parsed.IPAddresses {
		if ip.String() == "127.0.0.1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("loopback SAN count = %d, want exactly 1", count)
	}
}
