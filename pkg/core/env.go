package core

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by CredentialsFromEnv.
const (
	EnvAPIKey    = "BINANCE_API_KEY"
	EnvSecretKey = "BINANCE_API_SECRET"
)

// CredentialsFromEnv reads credentials from the given .env files, falling
// back to the process environment for keys the files do not set. It returns
// nil when neither key is found anywhere.
func CredentialsFromEnv(files ...string) (*Credentials, error) {
	env := map[string]string{}
	if len(files) > 0 {
		m, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("read env files: %w", err)
		}
		env = m
	}

	lookup := func(key string) string {
		if v, ok := env[key]; ok && v != "" {
			return v
		}
		return os.Getenv(key)
	}

	creds := &Credentials{
		APIKey:    lookup(EnvAPIKey),
		SecretKey: lookup(EnvSecretKey),
	}
	if !creds.HasAPIKey() && !creds.HasSecretKey() {
		return nil, nil
	}
	return creds, nil
}
