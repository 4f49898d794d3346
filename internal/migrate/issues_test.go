package migrate

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitedata/cdf-tk/internal/cdf"
)

func TestIssueLogWritesJSONLines(t *testing.T) {
	log, err := NewIssueLog(t.TempDir(), "run-1")
	require.NoError(t, err)

	issues := []*ConversionIssue{
		{
			AssetCentricId: AssetCentricId{ResourceType: "asset", Id: 1},
			InstanceId:     cdf.InstanceId{Space: "sp", ExternalId: "a"},
		},
		{
			AssetCentricId:                AssetCentricId{ResourceType: "asset", Id: 2},
			InstanceId:                    cdf.InstanceId{Space: "sp", ExternalId: "b"},
			IgnoredAssetCentricProperties: []string{"metadata.vendor"},
		},
	}
	for _, issue := range issues {
		require.NoError(t, log.Write(issue))
	}
	require.NoError(t, log.Close())

	file, err := os.Open(log.Path())
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	var decoded []ConversionIssue
	for scanner.Scan() {
		var issue ConversionIssue
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &issue))
		decoded = append(decoded, issue)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, decoded, 2)
	assert.Equal(t, int64(1), decoded[0].AssetCentricId.Id)
	assert.True(t, decoded[0].Clean())
	assert.False(t, decoded[1].Clean())
}

func TestConversionIssueClean(t *testing.T) {
	issue := &ConversionIssue{}
	assert.True(t, issue.Clean())

	issue.FailedConversions = append(issue.FailedConversions, FailedConversion{SourcePath: "x"})
	assert.False(t, issue.Clean())
}
