package fetch

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	c := &Client{
		BaseURL:    "https://releases.test",
		HTTPClient: &http.Client{},
	}
	gock.InterceptClient(c.HTTPClient)
	return c
}

func TestDownload(t *testing.T) {
	defer gock.Off()

	gock.New("https://releases.test").
		Get("/releases/download/v1.2.0/caddy").
		Reply(200).
		BodyString("binary contents")

	c := testClient()
	dest := filepath.Join(t.TempDir(), "caddy")

	err := c.Download(context.Background(), "v1.2.0", "caddy", dest, 0o755)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "binary contents", string(got))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.True(t, gock.IsDone())
}

func TestDownloadMissingArtifactFails(t *testing.T) {
	defer gock.Off()

	gock.New("https://releases.test").
		Get("/releases/download/main/caddy").
		Reply(404)

	c := testClient()
	dest := filepath.Join(t.TempDir(), "caddy")

	err := c.Download(context.Background(), "main", "caddy", dest, 0o755)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")

	// a failed download must not leave an artifact behind the operator
	// could mistake for a good one
	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr))
}

func TestURL(t *testing.T) {
	c := NewClient()
	require.Equal(t,
		DefaultBaseURL+"/releases/download/main/keychain-schema.json",
		c.URL("main", "keychain-schema.json"))
}
