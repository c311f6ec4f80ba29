package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apierrors "github.com/nurlabs/nurchat/internal/errors"
)

// Credentials holds the bearer token issued by the platform
type Credentials struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at,omitempty"`
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "credentials.json"), nil
}

// LoadCredentials loads the stored token. A missing file is ErrNoToken.
func LoadCredentials() (*Credentials, error) {
	path, err := GetCredentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w. Please log in first:\n  nurchat login", apierrors.ErrNoToken)
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	return parseCredentials(data)
}

// parseCredentials accepts {"token": "..."}, the {"access_token": "..."}
// shape the platform's login endpoint returns, or a bare token.
func parseCredentials(data []byte) (*Credentials, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, apierrors.ErrNoToken
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Token       string    `json:"token"`
			AccessToken string    `json:"access_token"`
			SavedAt     time.Time `json:"saved_at"`
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return nil, fmt.Errorf("invalid credentials format: %w", err)
		}
		token := obj.Token
		if token == "" {
			token = obj.AccessToken
		}
		creds := &Credentials{Token: strings.TrimSpace(token), SavedAt: obj.SavedAt}
		if err := ValidateToken(creds.Token); err != nil {
			return nil, err
		}
		return creds, nil
	}

	token := strings.TrimPrefix(trimmed, "Bearer ")
	if err := ValidateToken(token); err != nil {
		return nil, err
	}
	return &Credentials{Token: token}, nil
}

// SaveCredentials writes the token with owner-only permissions
func SaveCredentials(creds *Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials are nil")
	}
	if err := ValidateToken(creds.Token); err != nil {
		return err
	}

	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, "credentials.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// ImportCredentials reads a token file in any accepted format and stores it
func ImportCredentials(sourcePath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source file not found: %s", sourcePath)
		}
		return fmt.Errorf("could not read file: %w", err)
	}

	creds, err := parseCredentials(data)
	if err != nil {
		return err
	}
	return SaveCredentials(creds)
}

// DeleteCredentials removes the stored token. Missing is not an error.
func DeleteCredentials() error {
	path, err := GetCredentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// ResolveToken returns the token from NURCHAT_TOKEN, falling back to the
// credentials file.
func ResolveToken() (string, error) {
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		return tok, nil
	}
	creds, err := LoadCredentials()
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}

// ValidateToken checks that token looks like a bearer token
func ValidateToken(token string) error {
	if token == "" {
		return apierrors.ErrNoToken
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("token must not contain whitespace")
	}
	if len(token) < 8 {
		return fmt.Errorf("token is too short")
	}
	return nil
}

// MaskToken shows only the ends of a token
func MaskToken(token string) string {
	if len(token) <= 10 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 6) + token[len(token)-4:]
}
