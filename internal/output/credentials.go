package output

import (
	"errors"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

const (
	envCredentialsFile = "GCP_SERVICE_ACCOUNT_FILE"
	envCredentialsJSON = "GCP_SERVICE_ACCOUNT_JSON"
)

// ErrNoCredentials is returned when no service account could be found.
var ErrNoCredentials = errors.New("no Google credentials provided: set gcp_creds or " +
	envCredentialsFile + " / " + envCredentialsJSON)

// LoadCredentials returns service account JSON. arg is read as a file when
// such a file exists and taken as inline JSON when it looks like an object.
// Otherwise the environment is consulted: GCP_SERVICE_ACCOUNT_FILE first,
// then GCP_SERVICE_ACCOUNT_JSON.
func LoadCredentials(arg string) ([]byte, error) {
	if arg != "" {
		if fileExists(arg) {
			return readJSONFile(arg)
		}
		if strings.HasPrefix(strings.TrimSpace(arg), "{") {
			return validJSON([]byte(arg), "inline credentials")
		}
	}
	if path := os.Getenv(envCredentialsFile); path != "" && fileExists(path) {
		return readJSONFile(path)
	}
	if raw := os.Getenv(envCredentialsJSON); raw != "" {
		return validJSON([]byte(raw), envCredentialsJSON)
	}
	if arg != "" {
		return nil, fmt.Errorf("credentials file %s not found: %w", arg, ErrNoCredentials)
	}
	return nil, ErrNoCredentials
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return validJSON(data, path)
}

func validJSON(data []byte, source string) ([]byte, error) {
	if !jsoniter.Valid(data) {
		return nil, fmt.Errorf("credentials from %s are not valid JSON", source)
	}
	return data, nil
}
