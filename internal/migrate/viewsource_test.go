package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitedata/cdf-tk/internal/cdf"
)

func writeViewMappingFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "views.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadViewMappingsPreservesPropertyOrder(t *testing.T) {
	path := writeViewMappingFile(t, `
mappings:
  - name: pump
    resourceType: asset
    view:
      space: my_space
      externalId: Pump
      version: v2
    properties:
      name: name
      metadata.display_name: name
      description: description
`)

	mappings, err := LoadViewMappings(path)
	require.NoError(t, err)
	require.Len(t, mappings, 1)

	m := mappings[0]
	assert.Equal(t, "pump", m.Name)
	assert.Equal(t, cdf.ResourceTypeAsset, m.ResourceType)
	assert.Equal(t, cdf.ViewId{Space: "my_space", ExternalId: "Pump", Version: "v2"}, m.ViewId)
	// Declaration order decides which entry wins a shared target.
	assert.Equal(t, []PropertyMapping{
		{Source: "name", Target: "name"},
		{Source: "metadata.display_name", Target: "name"},
		{Source: "description", Target: "description"},
	}, m.PropertyMapping)
}

func TestLoadViewMappingsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing name": `
mappings:
  - resourceType: asset
    view: {space: s, externalId: V, version: v1}
    properties: {name: name}
`,
		"unknown resource type": `
mappings:
  - name: x
    resourceType: widget
    view: {space: s, externalId: V, version: v1}
    properties: {name: name}
`,
		"properties not a mapping": `
mappings:
  - name: x
    resourceType: asset
    view: {space: s, externalId: V, version: v1}
    properties:
      - name
`,
	}
	for label, content := range cases {
		path := writeViewMappingFile(t, content)
		_, err := LoadViewMappings(path)
		assert.Error(t, err, label)
	}
}

func TestLoadViewMappingsMissingFile(t *testing.T) {
	_, err := LoadViewMappings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestMappingRegistryShadowing(t *testing.T) {
	registry := DefaultMappings()

	base, ok := registry.Get("asset")
	require.True(t, ok)
	assert.Equal(t, "CogniteAsset", base.ViewId.ExternalId)

	custom := ResourceViewMapping{
		Name:         "asset",
		ResourceType: cdf.ResourceTypeAsset,
		ViewId:       cdf.ViewId{Space: "custom", ExternalId: "MyAsset", Version: "v1"},
	}
	extended := registry.With(custom)

	got, ok := extended.Get("asset")
	require.True(t, ok)
	assert.Equal(t, "MyAsset", got.ViewId.ExternalId)

	// The original registry is untouched.
	got, ok = registry.Get("asset")
	require.True(t, ok)
	assert.Equal(t, "CogniteAsset", got.ViewId.ExternalId)

	_, ok = registry.Get("nonexistent")
	assert.False(t, ok)
}

func TestDefaultMappingsCoverAllKinds(t *testing.T) {
	registry := DefaultMappings()
	for _, rt := range []cdf.ResourceType{
		cdf.ResourceTypeAsset,
		cdf.ResourceTypeEvent,
		cdf.ResourceTypeTimeSeries,
		cdf.ResourceTypeFile,
		cdf.ResourceTypeSequence,
	} {
		m, ok := registry.Get(DefaultIngestionView(rt))
		require.True(t, ok, rt.String())
		assert.Equal(t, rt, m.ResourceType)
		assert.NotEmpty(t, m.PropertyMapping)
	}
}
