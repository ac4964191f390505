// FILE: crashwatch/src/internal/config/saver.go
package config

import (
	"errors"
	"fmt"
	"os"

	lconfig "github.com/lixenwraith/config"
)

// ErrConfigExists is returned by WriteTemplate when the target exists and force is unset
var ErrConfigExists = errors.New("config file already exists")

// WriteTemplate saves c as TOML at path. An existing file is kept unless force is set.
func (c *Config) WriteTemplate(path string, force bool) error {
	if path == "" {
		return fmt.Errorf("cannot save config: path is empty")
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	lcfg, err := lconfig.NewBuilder().
		WithTarget(c).
		WithFileFormat("toml").
		Build()
	if err != nil {
		return fmt.Errorf("failed to build config for %s: %w", path, err)
	}

	if err := lcfg.Save(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
