package migrate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitedata/cdf-tk/internal/cdf"
)

const (
	testBaseURL = "https://api.cognitedata.com"
	testAPIRoot = testBaseURL + "/api/v1/projects/test-project"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCDFClient(t *testing.T) *cdf.Client {
	t.Helper()
	c := cdf.NewClient(cdf.ClientConfig{
		BaseURL:     testBaseURL,
		Project:     "test-project",
		TokenSource: cdf.StaticTokenSource("test-token"),
		Logger:      discardLogger(),
	})
	httpmock.ActivateNonDefault(c.HTTP().HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func collectPages(t *testing.T, s *Streamer, selector DataSelector, limit int) []Page {
	t.Helper()
	var pages []Page
	err := s.StreamData(context.Background(), selector, limit, func(p Page) error {
		pages = append(pages, p)
		return nil
	})
	require.NoError(t, err)
	return pages
}

func TestStreamFromMappingsDropsVanishedResources(t *testing.T) {
	c := newTestCDFClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/assets/byids",
		httpmock.NewStringResponder(http.StatusOK,
			`{"items":[{"id":3,"name":"c"},{"id":1,"name":"a"}]}`))

	path := writeMappingFile(t,
		"id,space,externalId\n1,sp,a\n2,sp,b\n3,sp,c\n")
	selector := NewMappingFileSelector(cdf.ResourceTypeAsset, path)

	pages := collectPages(t, NewStreamer(c, 0, discardLogger()), selector, 0)
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Pairs, 2)

	// Pairs follow API order, each zipped with its own mapping.
	first := pages[0].Pairs[0]
	assert.Equal(t, "c", first.Resource["name"])
	assert.Equal(t, int64(3), first.Mapping.LegacyId)
	assert.Equal(t, "c", first.Mapping.InstanceId.ExternalId)

	second := pages[0].Pairs[1]
	assert.Equal(t, int64(1), second.Mapping.LegacyId)
}

func TestStreamFromDataSetSynthesizesMappings(t *testing.T) {
	c := newTestCDFClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/datasets/byids",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{"id":77}]}`))
	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/events/list",
		httpmock.NewStringResponder(http.StatusOK,
			`{"items":[{"id":1,"externalId":"ev-1"},{"id":2}]}`))

	selector := &DataSetSelector{
		Kind:              cdf.ResourceTypeEvent,
		DataSetExternalId: "ds",
		InstanceSpace:     "sp",
	}

	pages := collectPages(t, NewStreamer(c, 0, discardLogger()), selector, 0)
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Pairs, 2)

	first := pages[0].Pairs[0].Mapping
	assert.Equal(t, cdf.InstanceId{Space: "sp", ExternalId: "ev-1"}, first.InstanceId)
	assert.Equal(t, int64(77), first.DataSetId)

	// Resources without an external id get a deterministic synthesized one.
	second := pages[0].Pairs[1].Mapping
	assert.Equal(t, "event_2", second.InstanceId.ExternalId)
}

func TestStreamFromDataSetMarksMissingSpace(t *testing.T) {
	c := newTestCDFClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/datasets/byids",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{"id":77}]}`))
	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/assets/list",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{"id":1}]}`))

	selector := &DataSetSelector{Kind: cdf.ResourceTypeAsset, DataSetExternalId: "ds"}

	pages := collectPages(t, NewStreamer(c, 0, discardLogger()), selector, 0)
	require.Len(t, pages, 1)
	assert.Equal(t, MissingInstanceSpace, pages[0].Pairs[0].Mapping.InstanceId.Space)
}

func TestStreamFromDataSetHonorsLimit(t *testing.T) {
	c := newTestCDFClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/datasets/byids",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{"id":77}]}`))
	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/assets/list",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]any
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			assert.Equal(t, float64(2), body["limit"])
			return httpmock.NewStringResponse(http.StatusOK,
				`{"items":[{"id":1,"externalId":"a"},{"id":2,"externalId":"b"}],"nextCursor":"more"}`), nil
		})

	selector := &DataSetSelector{Kind: cdf.ResourceTypeAsset, DataSetExternalId: "ds", InstanceSpace: "sp"}

	pages := collectPages(t, NewStreamer(c, 0, discardLogger()), selector, 2)
	require.Len(t, pages, 1)
	assert.Len(t, pages[0].Pairs, 2)
	// The cursor is not followed once the limit is reached.
	assert.Equal(t, 1, httpmock.GetCallCountInfo()["POST "+testAPIRoot+"/assets/list"])
}

func TestLinkPendingInstancesExcludesFailures(t *testing.T) {
	c := newTestCDFClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIRoot+"/timeseries/set-pending-instance-ids",
		func(req *http.Request) (*http.Response, error) {
			var body struct {
				Items []map[string]any `json:"items"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			for _, item := range body.Items {
				if item["id"] == float64(2) {
					return httpmock.NewStringResponse(http.StatusBadRequest,
						`{"error":{"code":400,"message":"id 2 already linked"}}`), nil
				}
			}
			return httpmock.NewStringResponse(http.StatusOK, `{}`), nil
		})

	pairs := []ResourcePair{
		{Mapping: MigrationMapping{LegacyId: 1, InstanceId: cdf.InstanceId{Space: "sp", ExternalId: "a"}}},
		{Mapping: MigrationMapping{LegacyId: 2, InstanceId: cdf.InstanceId{Space: "sp", ExternalId: "b"}}},
		{Mapping: MigrationMapping{LegacyId: 3, InstanceId: cdf.InstanceId{Space: "sp", ExternalId: "c"}}},
	}

	s := NewStreamer(c, 0, discardLogger())
	linked, failures, err := s.LinkPendingInstances(context.Background(), cdf.ResourceTypeTimeSeries, pairs, false)
	require.NoError(t, err)

	require.Len(t, linked, 2)
	assert.Equal(t, int64(1), linked[0].Mapping.LegacyId)
	assert.Equal(t, int64(3), linked[1].Mapping.LegacyId)

	require.Len(t, failures, 1)
	assert.Equal(t, int64(2), failures[0].Mapping.LegacyId)
	assert.Error(t, failures[0].Err)
}

func TestLinkPendingInstancesBypass(t *testing.T) {
	c := newTestCDFClient(t)
	s := NewStreamer(c, 0, discardLogger())

	pairs := []ResourcePair{{Mapping: MigrationMapping{LegacyId: 1}}}

	// Kinds without pending-id support never call the API.
	linked, failures, err := s.LinkPendingInstances(context.Background(), cdf.ResourceTypeAsset, pairs, false)
	require.NoError(t, err)
	assert.Equal(t, pairs, linked)
	assert.Empty(t, failures)

	// Explicit bypass skips linking even for supporting kinds.
	linked, failures, err = s.LinkPendingInstances(context.Background(), cdf.ResourceTypeTimeSeries, pairs, true)
	require.NoError(t, err)
	assert.Equal(t, pairs, linked)
	assert.Empty(t, failures)
	assert.Zero(t, httpmock.GetTotalCallCount())
}
