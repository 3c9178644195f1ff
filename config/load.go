package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} with the value of the
// environment variable. Unset variables without a default expand to an empty
// string.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)

		value, ok := os.LookupEnv(groups[1])
		if ok && value != "" {
			return value
		}

		return groups[2]
	})
}

// LoadEnvFiles loads .env files into the environment. Variables that are
// already set are not overridden. Without arguments, ".env" is loaded if it
// exists.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
			return nil
		}

		files = []string{".env"}
	}

	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("cannot load env files: %w", err)
	}

	return nil
}

// Load reads a network description from a YAML file.
func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}

		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	n, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return n, nil
}

// Parse reads a network description, fills in the defaults and validates it.
// Unknown fields are rejected.
func Parse(r io.Reader) (*Network, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(ExpandEnv(string(data)))))
	decoder.KnownFields(true)

	var n Network
	if err := decoder.Decode(&n); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	n.ApplyDefaults()

	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network: %w", err)
	}

	return &n, nil
}
