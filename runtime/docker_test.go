package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/javaarchive/nerine-tweaks/cert"
	"github.com/javaarchive/nerine-tweaks/keychain"
)

func TestNewClientLocal(t *testing.T) {
	cli, cleanup, err := NewClient(keychain.LocalBackend())
	require.NoError(t, err)
	defer cleanup()
	defer cli.Close()

	require.NotNil(t, cli)
}

func TestNewClientSSL(t *testing.T) {
	ca := cert.NewCA()
	caCert, err := ca.GenerateCACert(&cert.CACSRInput{CommonName: "runtime test"})
	require.NoError(t, err)

	clientCert, err := ca.GenerateClientCert()
	require.NoError(t, err)

	backend := keychain.SSLBackend("10.0.0.5:996", caCert.Cert, clientCert.Cert, clientCert.Key)

	cli, cleanup, err := NewClient(backend)
	require.NoError(t, err)
	defer cleanup()
	defer cli.Close()

	require.Equal(t, "tcp://10.0.0.5:996", cli.DaemonHost())
}

func TestNewClientRejectsInvalidBackend(t *testing.T) {
	_, _, err := NewClient(keychain.Backend{Type: keychain.BackendSSL})
	require.Error(t, err)
}
