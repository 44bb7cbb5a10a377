// ABOUTME: Config template generation for --init-config
// ABOUTME: Serialises the defaults to TOML under a short header
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const templateHeader = `# Resonix node configuration.
# Spotify values may be literal secrets or names of environment variables.
# sources.allowed / sources.blocked hold regular expressions matched against
# the requested identifier; blocked always wins.

`

// Template returns the default configuration as TOML
func Template() ([]byte, error) {
	body, err := toml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	return append([]byte(templateHeader), body...), nil
}

// WriteTemplate writes the template to path, refusing to overwrite a file
func WriteTemplate(path string) error {
	data, err := Template()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists", path)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
