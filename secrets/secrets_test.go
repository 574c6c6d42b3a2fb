package secrets

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)

	for name, val := range map[string]string{
		"db password": s.DBPassword,
		"jwt secret":  s.JWTSecret,
		"admin token": s.AdminToken,
	} {
		raw, err := base64.RawURLEncoding.DecodeString(val)
		require.NoErrorf(t, err, "%s is not base64url", name)
		require.Lenf(t, raw, secretLen, "%s entropy", name)
	}

	require.NotEqual(t, s.DBPassword, s.JWTSecret)
	require.NotEqual(t, s.JWTSecret, s.AdminToken)
}

// Secret generation is deliberately non-idempotent: rerunning bootstrap
// rotates every credential.
func TestGenerateRotates(t *testing.T) {
	first, err := Generate()
	require.NoError(t, err)

	second, err := Generate()
	require.NoError(t, err)

	require.NotEqual(t, first.DBPassword, second.DBPassword)
	require.NotEqual(t, first.JWTSecret, second.JWTSecret)
	require.NotEqual(t, first.AdminToken, second.AdminToken)
}

func TestEnv(t *testing.T) {
	s := &Secrets{DBPassword: "pw", JWTSecret: "jwt", AdminToken: "admin"}

	env := s.Env("ctf.example.com", false)
	require.Equal(t, "postgres://nerine:pw@db/nerine", env["DATABASE_URL"])
	require.Equal(t, "pw", env["POSTGRES_PASSWORD"])
	require.Equal(t, "http://ctf.example.com", env["CORS_ORIGIN"])

	env = s.Env("ctf.example.com", true)
	require.Equal(t, "https://ctf.example.com", env["CORS_ORIGIN"])
}

func TestWriteEnv(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, WriteEnv(path, s.Env("ctf.example.com", true)))

	loaded, err := godotenv.Read(path)
	require.NoError(t, err)

	require.Equal(t, s.AdminToken, loaded["ADMIN_TOKEN"])
	require.Equal(t, s.JWTSecret, loaded["JWT_SECRET"])
	require.True(t, strings.HasPrefix(loaded["DATABASE_URL"], "postgres://nerine:"))
}
