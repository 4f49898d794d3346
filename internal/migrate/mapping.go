package migrate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/errors"
)

// MigrationMapping is one row of migration intent: which legacy resource
// becomes which data-model instance. Read-only once created.
type MigrationMapping struct {
	ResourceType          cdf.ResourceType
	LegacyId              int64
	InstanceId            cdf.InstanceId
	DataSetId             int64
	IngestionView         string
	PreferredConsumerView *cdf.ViewId
}

// EffectiveIngestionView returns the named ingestion view, falling back to
// the resource-type default.
func (m MigrationMapping) EffectiveIngestionView() string {
	if m.IngestionView != "" {
		return m.IngestionView
	}
	return DefaultIngestionView(m.ResourceType)
}

var requiredMappingColumns = []string{"id", "space", "externalId"}

var knownMappingColumns = map[string]bool{
	"id":                     true,
	"space":                  true,
	"externalId":             true,
	"dataSetId":              true,
	"ingestionView":          true,
	"consumerViewSpace":      true,
	"consumerViewExternalId": true,
	"consumerViewVersion":    true,
}

// ReadMappingCSV parses a migration mapping file for resources of one kind.
// It fails fast on a missing header, missing required columns or a file with
// no data rows, all before any API call is made. Unknown extra columns are
// returned as warnings, not errors.
func ReadMappingCSV(path string, rt cdf.ResourceType) ([]MigrationMapping, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Newf("failed to open mapping file %s: %w", path, err).
			Component("migrate").
			Category(errors.CategoryMappingFile).
			Build()
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, emptyMappingFileError(path)
	}
	if err != nil {
		return nil, nil, invalidMappingFileError(path, err)
	}
	if len(header) > 0 {
		// Strip an optional UTF-8 BOM from the first column name.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make(map[string]int, len(header))
	var warnings []string
	for i, name := range header {
		name = strings.TrimSpace(name)
		columns[name] = i
		if !knownMappingColumns[name] {
			warnings = append(warnings, fmt.Sprintf("mapping file %s has unexpected column %q, it will be ignored", path, name))
		}
	}

	var missing []string
	for _, required := range requiredMappingColumns {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, warnings, errors.Newf("mapping file %s is missing required columns: %s", path, strings.Join(missing, ", ")).
			Component("migrate").
			Category(errors.CategoryMappingFile).
			Build()
	}

	var mappings []MigrationMapping
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, warnings, invalidMappingFileError(path, err)
		}

		mapping, err := parseMappingRecord(record, columns, rt)
		if err != nil {
			return nil, warnings, errors.Newf("mapping file %s line %d: %w", path, line, err).
				Component("migrate").
				Category(errors.CategoryMappingFile).
				Build()
		}
		mappings = append(mappings, mapping)
	}

	if len(mappings) == 0 {
		return nil, warnings, emptyMappingFileError(path)
	}
	return mappings, warnings, nil
}

func parseMappingRecord(record []string, columns map[string]int, rt cdf.ResourceType) (MigrationMapping, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	idText := field("id")
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return MigrationMapping{}, fmt.Errorf("invalid id %q", idText)
	}

	space := field("space")
	externalId := field("externalId")
	if space == "" || externalId == "" {
		return MigrationMapping{}, fmt.Errorf("space and externalId must not be empty")
	}

	mapping := MigrationMapping{
		ResourceType:  rt,
		LegacyId:      id,
		InstanceId:    cdf.InstanceId{Space: space, ExternalId: externalId},
		IngestionView: field("ingestionView"),
	}

	if dataSet := field("dataSetId"); dataSet != "" {
		dataSetId, err := strconv.ParseInt(dataSet, 10, 64)
		if err != nil {
			return MigrationMapping{}, fmt.Errorf("invalid dataSetId %q", dataSet)
		}
		mapping.DataSetId = dataSetId
	}

	consumerSpace := field("consumerViewSpace")
	consumerExternalId := field("consumerViewExternalId")
	consumerVersion := field("consumerViewVersion")
	if consumerSpace != "" || consumerExternalId != "" || consumerVersion != "" {
		if consumerSpace == "" || consumerExternalId == "" || consumerVersion == "" {
			return MigrationMapping{}, fmt.Errorf("consumer view requires space, externalId and version")
		}
		mapping.PreferredConsumerView = &cdf.ViewId{
			Space:      consumerSpace,
			ExternalId: consumerExternalId,
			Version:    consumerVersion,
		}
	}

	return mapping, nil
}

func emptyMappingFileError(path string) error {
	return errors.Newf("mapping file %s contains no data rows", path).
		Component("migrate").
		Category(errors.CategoryMappingFile).
		Build()
}

func invalidMappingFileError(path string, err error) error {
	return errors.Newf("failed to parse mapping file %s: %w", path, err).
		Component("migrate").
		Category(errors.CategoryMappingFile).
		Build()
}
