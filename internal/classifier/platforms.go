package classifier

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed platforms.yaml
var platformsYAML []byte

// platformTable maps a bare host (leading "www." already stripped) to the
// display name of the platform. Loaded once at init from the embedded table.
var platformTable map[string]string

func init() {
	var doc struct {
		Platforms []struct {
			Name  string   `yaml:"name"`
			Hosts []string `yaml:"hosts"`
		} `yaml:"platforms"`
	}
	if err := yaml.Unmarshal(platformsYAML, &doc); err != nil {
		panic(fmt.Sprintf("classifier: embedded platform table is invalid: %v", err))
	}

	platformTable = make(map[string]string)
	for _, p := range doc.Platforms {
		for _, h := range p.Hosts {
			platformTable[h] = p.Name
		}
	}
}
