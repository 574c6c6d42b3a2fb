// Package secrets generates the platform's runtime secrets and composes
// its process environment.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/javaarchive/nerine-tweaks/utils"
)

// secretLen is the entropy per secret in bytes, base64url-encoded for
// transport.
const secretLen = 32

// Secrets are the credentials the platform processes boot with.
// Every bootstrap run mints a fresh set; reruns rotate all of them.
type Secrets struct {
	DBPassword string
	JWTSecret  string
	AdminToken string
}

// Generate mints a fresh secret set from the system CSPRNG.
func Generate() (*Secrets, error) {
	db, err := token()
	if err != nil {
		return nil, err
	}
	jwt, err := token()
	if err != nil {
		return nil, err
	}
	admin, err := token()
	if err != nil {
		return nil, err
	}

	return &Secrets{
		DBPassword: db,
		JWTSecret:  jwt,
		AdminToken: admin,
	}, nil
}

func token() (string, error) {
	b := make([]byte, secretLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Env composes the platform environment from the generated secrets and the
// operator-supplied platform domain.
func (s *Secrets) Env(platformDomain string, enableHTTPS bool) map[string]string {
	proto := "http"
	if enableHTTPS {
		proto = "https"
	}

	return map[string]string{
		"DATABASE_URL":      fmt.Sprintf("postgres://nerine:%s@db/nerine", s.DBPassword),
		"POSTGRES_PASSWORD": s.DBPassword,
		"ADMIN_TOKEN":       s.AdminToken,
		"JWT_SECRET":        s.JWTSecret,
		"CORS_ORIGIN":       fmt.Sprintf("%s://%s", proto, platformDomain),
	}
}

// WriteEnv renders the environment as a dotenv file with owner-only
// permissions; it embeds the database password and tokens.
func WriteEnv(path string, env map[string]string) error {
	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed marshalling env: %w", err)
	}
	return utils.WriteSecretFile(path, []byte(content+"\n"))
}
