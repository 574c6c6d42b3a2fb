// Package fetch downloads prebuilt deployment artifacts (the proxy binary
// with the dynamic_router plugin, compose files) from a release endpoint,
// addressed by a git reference.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBaseURL is the release endpoint artifacts are pulled from.
const DefaultBaseURL = "https://github.com/javaarchive/nerine"

const requestTimeout = 5 * time.Minute

// Client downloads release artifacts.
type Client struct {
	// BaseURL is the repository base; releases are expected under
	// <BaseURL>/releases/download/<ref>/<name>.
	BaseURL string

	// HTTPClient defaults to a client with a download-sized timeout.
	HTTPClient *http.Client
}

// NewClient returns a release artifact client for the default endpoint.
func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// URL returns the release URL for one artifact.
func (c *Client) URL(ref, name string) string {
	return fmt.Sprintf("%s/releases/download/%s/%s", c.BaseURL, ref, name)
}

// Download fetches one artifact by reference and writes it to dest with the
// given mode. Any transport failure or non-2xx status is an error; there
// are no retries, a failed bootstrap is rerun from scratch.
func (c *Client) Download(ctx context.Context, ref, name, dest string, mode os.FileMode) (err error) {
	url := c.URL(ref, name)
	log.Infof("downloading %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed building artifact request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed fetching %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return errors.Wrapf(err, "failed creating %s", dest)
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed writing %s", dest)
	}

	log.Debugf("wrote %d bytes to %s", n, dest)
	return nil
}
