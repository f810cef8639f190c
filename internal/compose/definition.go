package compose

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"evalgo.org/dockhand/models"
)

// Definition is a parsed Compose file, retaining only what validation
// needs: the service map. The raw content is what actually reaches the
// host; Dockhand never rewrites it.
type Definition struct {
	services map[string]struct{}
}

// rawDefinition mirrors the top-level Compose file structure.
type rawDefinition struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// ParseDefinition validates Compose file content before any dispatch.
// Malformed YAML or a missing/empty services map fails with
// InvalidDefinition, guaranteeing no partial remote side effect.
func ParseDefinition(content string) (*Definition, error) {
	if content == "" {
		return nil, models.NewError(models.KindInvalidDefinition, "compose definition is empty")
	}

	var raw rawDefinition
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, models.WrapError(models.KindInvalidDefinition, err,
			"compose definition is not valid YAML")
	}

	if len(raw.Services) == 0 {
		return nil, models.NewError(models.KindInvalidDefinition,
			"compose definition declares no services")
	}

	def := &Definition{services: make(map[string]struct{}, len(raw.Services))}
	for name := range raw.Services {
		if name == "" {
			return nil, models.NewError(models.KindInvalidDefinition,
				"compose definition contains an unnamed service")
		}
		def.services[name] = struct{}{}
	}

	return def, nil
}

// HasService reports whether the definition declares the named service.
func (d *Definition) HasService(name string) bool {
	_, ok := d.services[name]
	return ok
}

// ServiceNames returns the declared service names, sorted.
func (d *Definition) ServiceNames() []string {
	names := make([]string, 0, len(d.services))
	for name := range d.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer for log-friendly output.
func (d *Definition) String() string {
	return fmt.Sprintf("compose definition with %d service(s)", len(d.services))
}
