package language

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// languagesFile is the shape of a languages.toml:
//
//	[[languages]]
//	name = "ruby"
//	extension = ".rb"
//	source = "main.rb"
//	run = ["ruby", "{source}"]
type languagesFile struct {
	Languages []Profile `toml:"languages"`
}

// Load builds the registry from the built-in defaults, optionally overridden
// and extended by a TOML file. An empty path means defaults only.
func Load(path string) (*Registry, error) {
	profiles := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading languages file: %w", err)
		}
		var file languagesFile
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing languages file %s: %w", path, err)
		}
		// File entries come last so they win over defaults of the same name.
		profiles = append(profiles, file.Languages...)
	}

	return NewRegistry(profiles)
}
