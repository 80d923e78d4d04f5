package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Credentials is the service credential file read at startup.
type Credentials struct {
	DatabaseURL string `json:"database_url"`
	ProjectID   string `json:"project_id,omitempty"`
}

// LoadCredentials reads the JSON credential file at path. A file without
// database_url is accepted; Config.DatabaseURL decides whether a URL is
// available.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return &creds, nil
}

// ErrNoDatabaseURL is returned when neither DATABASE_URL nor the credential
// file provides a connection string.
var ErrNoDatabaseURL = errors.New("credentials: database_url is required")

// DatabaseURL returns the connection string, preferring the DATABASE_URL
// override over the credential file. creds may be nil.
func (c *Config) DatabaseURL(creds *Credentials) (string, error) {
	if c.Database.URL != "" {
		return c.Database.URL, nil
	}
	if creds != nil && creds.DatabaseURL != "" {
		return creds.DatabaseURL, nil
	}
	return "", ErrNoDatabaseURL
}
