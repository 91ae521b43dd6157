package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL     string
	OperatorToken string
	Output        string
	Verbose       bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:     getEnvOrDefault("DICECTL_SERVER", "http://localhost:8080"),
		OperatorToken: os.Getenv("DICECTL_OPERATOR_TOKEN"),
		Output:        "text",
		Verbose:       false,
	}
}

// LoadToken reads a session token saved by an earlier play
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken writes token to name inside dir, creating dir if needed, and
// returns the file path
func SaveToken(dir, name, token string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	// The server suggests the name; never let it escape dir
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return "", err
	}
	return path, nil
}

func defaultTokenDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dicectl"
	}
	return filepath.Join(home, ".dicectl")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
