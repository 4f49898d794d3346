package migrate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/errors"
)

// PropertyMapping maps one legacy JSON path (dot notation, e.g.
// metadata.sensor_type) to a target view property identifier.
type PropertyMapping struct {
	Source string
	Target string
}

// ResourceViewMapping declares, for one ingestion view name, which view and
// which property translations apply to resources of one kind.
//
// PropertyMapping is an ordered list: when two entries target the same view
// property, the first one wins and later ones are recorded as ignored.
type ResourceViewMapping struct {
	Name            string
	ResourceType    cdf.ResourceType
	ViewId          cdf.ViewId
	PropertyMapping []PropertyMapping
}

// wholesaleSources returns enabled source paths consumed as structured values.
// A source path is wholesale when the mapping references it and a flattened
// descent would otherwise split it apart; flattening checks this set.
func (m ResourceViewMapping) wholesaleSources() map[string]bool {
	wholesale := make(map[string]bool, len(m.PropertyMapping))
	for _, pm := range m.PropertyMapping {
		wholesale[pm.Source] = true
	}
	return wholesale
}

// MappingRegistry resolves ingestion view names to their declared mappings.
// It is built once at startup and read-only afterwards.
type MappingRegistry struct {
	byName map[string]ResourceViewMapping
}

// NewMappingRegistry builds a registry from the given mappings. Later
// mappings override earlier ones with the same name, so operator-defined
// mappings can shadow the defaults.
func NewMappingRegistry(mappings ...ResourceViewMapping) *MappingRegistry {
	byName := make(map[string]ResourceViewMapping, len(mappings))
	for _, m := range mappings {
		byName[m.Name] = m
	}
	return &MappingRegistry{byName: byName}
}

// Get resolves an ingestion view name.
func (r *MappingRegistry) Get(name string) (ResourceViewMapping, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// With returns a new registry extended by the given mappings.
func (r *MappingRegistry) With(mappings ...ResourceViewMapping) *MappingRegistry {
	combined := make([]ResourceViewMapping, 0, len(r.byName)+len(mappings))
	for _, m := range r.byName {
		combined = append(combined, m)
	}
	combined = append(combined, mappings...)
	return NewMappingRegistry(combined...)
}

// viewMappingFile is the YAML shape of an operator-defined mapping file.
type viewMappingFile struct {
	Mappings []viewMappingEntry `yaml:"mappings"`
}

type viewMappingEntry struct {
	Name         string    `yaml:"name"`
	ResourceType string    `yaml:"resourceType"`
	View         viewIdDoc `yaml:"view"`
	// Properties is decoded as a raw node so declaration order survives;
	// it drives the first-wins tie-break between overlapping entries.
	Properties yaml.Node `yaml:"properties"`
}

type viewIdDoc struct {
	Space      string `yaml:"space"`
	ExternalId string `yaml:"externalId"`
	Version    string `yaml:"version"`
}

// LoadViewMappings reads operator-defined ResourceViewMappings from a YAML file.
func LoadViewMappings(path string) ([]ResourceViewMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Newf("failed to read view mapping file %s: %w", path, err).
			Component("migrate").
			Category(errors.CategoryFileIO).
			Build()
	}

	var file viewMappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Newf("invalid view mapping file %s: %w", path, err).
			Component("migrate").
			Category(errors.CategoryValidation).
			Build()
	}

	mappings := make([]ResourceViewMapping, 0, len(file.Mappings))
	for i, entry := range file.Mappings {
		if entry.Name == "" {
			return nil, errors.Newf("view mapping %d in %s has no name", i, path).
				Category(errors.CategoryValidation).
				Build()
		}
		rt, err := cdf.ParseResourceType(entry.ResourceType)
		if err != nil {
			return nil, fmt.Errorf("view mapping %q: %w", entry.Name, err)
		}
		props, err := orderedProperties(&entry.Properties)
		if err != nil {
			return nil, fmt.Errorf("view mapping %q: %w", entry.Name, err)
		}
		mappings = append(mappings, ResourceViewMapping{
			Name:         entry.Name,
			ResourceType: rt,
			ViewId: cdf.ViewId{
				Space:      entry.View.Space,
				ExternalId: entry.View.ExternalId,
				Version:    entry.View.Version,
			},
			PropertyMapping: props,
		})
	}
	return mappings, nil
}

// orderedProperties converts a YAML mapping node into property mappings in
// document order.
func orderedProperties(node *yaml.Node) ([]PropertyMapping, error) {
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Value == "") {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("properties must be a mapping of sourcePath: targetProperty")
	}
	props := make([]PropertyMapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("property %q must map to a single target identifier", key.Value)
		}
		props = append(props, PropertyMapping{Source: key.Value, Target: value.Value})
	}
	return props, nil
}
