// Package runtime connects to the container runtime control plane the same
// way the deployment orchestrator later will, so bootstrap can verify a
// backend descriptor actually dials before shipping it in the keychain.
package runtime

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	dockerC "github.com/docker/docker/client"
	"github.com/docker/go-connections/tlsconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/javaarchive/nerine-tweaks/keychain"
	"github.com/javaarchive/nerine-tweaks/utils"
)

// NewClient builds an Engine API client for the given backend descriptor.
// The returned cleanup removes any temporary TLS material and must be
// called once the client is no longer needed.
func NewClient(backend keychain.Backend) (*dockerC.Client, func(), error) {
	if err := backend.Validate(); err != nil {
		return nil, nil, err
	}

	switch backend.Type {
	case keychain.BackendLocal:
		cli, err := dockerC.NewClientWithOpts(dockerC.FromEnv, dockerC.WithAPIVersionNegotiation())
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed creating local runtime client")
		}
		return cli, func() {}, nil

	case keychain.BackendSSL:
		return newTLSClient(backend)
	}

	return nil, nil, errors.Errorf("unknown backend type %q", backend.Type)
}

// newTLSClient materializes the embedded PEMs into a private tmpdir for the
// TLS loader and tears it down through the returned cleanup.
func newTLSClient(backend keychain.Backend) (*dockerC.Client, func(), error) {
	dir, err := os.MkdirTemp("", "nerine-docker-tls-")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warnf("failed removing temporary TLS material: %v", err)
		}
	}

	files := map[string]string{
		"ca.pem":   backend.CA,
		"cert.pem": backend.Cert,
		"key.pem":  backend.Key,
	}
	for name, content := range files {
		if err := utils.WriteSecretFile(filepath.Join(dir, name), []byte(content)); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	tlsCfg, err := tlsconfig.Client(tlsconfig.Options{
		CAFile:   filepath.Join(dir, "ca.pem"),
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
	})
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "failed building TLS config")
	}

	httpClient := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}

	cli, err := dockerC.NewClientWithOpts(
		dockerC.WithHost("tcp://"+backend.Address),
		dockerC.WithHTTPClient(httpClient),
		dockerC.WithAPIVersionNegotiation(),
	)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "failed creating remote runtime client")
	}

	return cli, cleanup, nil
}

// Ping verifies the runtime control plane answers.
func Ping(ctx context.Context, cli *dockerC.Client) error {
	ping, err := cli.Ping(ctx)
	if err != nil {
		return errors.Wrap(err, "container runtime is not reachable")
	}

	log.Debugf("container runtime answered, API version %s", ping.APIVersion)
	return nil
}
