package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/lifeline/internal/backend"
)

func TestHospitals_ListsPage(t *testing.T) {
	lat, lng := 12.97, 77.59
	var path string
	var query url.Values

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.Query()
		_ = json.NewEncoder(w).Encode(backend.Page[backend.Hospital]{
			Content: []backend.Hospital{
				{ID: 1, Name: "City General", District: "Central", Latitude: &lat, Longitude: &lng, TotalNumBeds: 120},
				{ID: 2, Name: "Lakeside Clinic"},
			},
			TotalElements: 12,
			TotalPages:    6,
			Size:          2,
			Number:        1,
		})
	}))
	defer ts.Close()

	out, _, err := execute(t, "hospitals", "--endpoint", ts.URL, "--page", "2", "--size", "2")
	require.NoError(t, err)

	assert.Equal(t, "/api/hospitals", path)
	assert.Equal(t, "1", query.Get("page"))
	assert.Equal(t, "2", query.Get("size"))
	assert.Contains(t, out, "City General")
	assert.Contains(t, out, "12.97000,77.59000")
	assert.Contains(t, out, "Lakeside Clinic")
	assert.Contains(t, out, "Page 2 of 6 (12 hospitals)")
}

func TestHospitals_JSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": null, "totalElements": 0, "totalPages": 0}`))
	}))
	defer ts.Close()

	out, _, err := execute(t, "--format", "json", "hospitals", "--endpoint", ts.URL)
	require.NoError(t, err)

	var got HospitalPage
	decodeData(t, out, &got)
	assert.Empty(t, got.Content)
	assert.NotNil(t, got.Content)
}

func TestHospitals_InvalidPage(t *testing.T) {
	_, _, err := execute(t, "hospitals", "--page", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
