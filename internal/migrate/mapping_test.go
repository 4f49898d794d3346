package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitedata/cdf-tk/internal/cdf"
)

func writeMappingFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mappings.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadMappingCSV(t *testing.T) {
	path := writeMappingFile(t,
		"id,space,externalId,dataSetId,ingestionView\n"+
			"123,sp,pump-1,9,asset\n"+
			"456,sp,pump-2,,\n")

	mappings, warnings, err := ReadMappingCSV(path, cdf.ResourceTypeAsset)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, mappings, 2)

	assert.Equal(t, int64(123), mappings[0].LegacyId)
	assert.Equal(t, cdf.InstanceId{Space: "sp", ExternalId: "pump-1"}, mappings[0].InstanceId)
	assert.Equal(t, int64(9), mappings[0].DataSetId)
	assert.Equal(t, "asset", mappings[0].EffectiveIngestionView())

	assert.Equal(t, int64(0), mappings[1].DataSetId)
	// Rows without an ingestion view fall back to the kind's default.
	assert.Equal(t, "asset", mappings[1].EffectiveIngestionView())
}

func TestReadMappingCSVStripsByteOrderMark(t *testing.T) {
	path := writeMappingFile(t, "\ufeffid,space,externalId\n1,sp,x\n")

	mappings, _, err := ReadMappingCSV(path, cdf.ResourceTypeEvent)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, int64(1), mappings[0].LegacyId)
}

func TestReadMappingCSVMissingRequiredColumns(t *testing.T) {
	path := writeMappingFile(t, "id,externalId\n1,x\n")

	_, _, err := ReadMappingCSV(path, cdf.ResourceTypeAsset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "space")
}

func TestReadMappingCSVEmptyFile(t *testing.T) {
	for _, content := range []string{"", "id,space,externalId\n"} {
		path := writeMappingFile(t, content)
		_, _, err := ReadMappingCSV(path, cdf.ResourceTypeAsset)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
		assert.Contains(t, err.Error(), "no data rows")
	}
}

func TestReadMappingCSVUnknownColumnsWarn(t *testing.T) {
	path := writeMappingFile(t, "id,space,externalId,comment\n1,sp,x,hello\n")

	mappings, warnings, err := ReadMappingCSV(path, cdf.ResourceTypeAsset)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `"comment"`)
}

func TestReadMappingCSVBadRowReportsLine(t *testing.T) {
	path := writeMappingFile(t, "id,space,externalId\n1,sp,x\nnot-a-number,sp,y\n")

	_, _, err := ReadMappingCSV(path, cdf.ResourceTypeAsset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), `invalid id "not-a-number"`)
}

func TestReadMappingCSVConsumerViewAllOrNone(t *testing.T) {
	path := writeMappingFile(t,
		"id,space,externalId,consumerViewSpace,consumerViewExternalId,consumerViewVersion\n"+
			"1,sp,x,views,MyAsset,v3\n")

	mappings, _, err := ReadMappingCSV(path, cdf.ResourceTypeAsset)
	require.NoError(t, err)
	require.NotNil(t, mappings[0].PreferredConsumerView)
	assert.Equal(t, cdf.ViewId{Space: "views", ExternalId: "MyAsset", Version: "v3"}, *mappings[0].PreferredConsumerView)

	path = writeMappingFile(t,
		"id,space,externalId,consumerViewSpace,consumerViewExternalId,consumerViewVersion\n"+
			"1,sp,x,views,,\n")
	_, _, err = ReadMappingCSV(path, cdf.ResourceTypeAsset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumer view requires")
}

func TestReadMappingCSVMissingFile(t *testing.T) {
	_, _, err := ReadMappingCSV(filepath.Join(t.TempDir(), "absent.csv"), cdf.ResourceTypeAsset)
	require.Error(t, err)
}
