package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/lifeline/internal/ir"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func testReport() ir.Report {
	return ir.Report{
		Latitude:        12.9716,
		Longitude:       77.5946,
		EmergencyType:   ir.EmergencySOS,
		Message:         "need help",
		ClientTimestamp: 1700000000000,
		OfflineID:       "sos-1",
	}
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://localhost:8080", false},
		{"https with path slash", "https://dispatch.example/", false},
		{"no scheme", "localhost:8080", true},
		{"ftp", "ftp://example.com", true},
		{"missing host", "http://", true},
		{"garbage", "://bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient("http://localhost:8080///")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.BaseURL())
}

func TestUpload_SendsReportJSON(t *testing.T) {
	var got ir.Report
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sos/report", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "lifeline/"+ir.ClientVersion, r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"status":"synced","id":7,"offlineId":"sos-1","message":"ok"}`)
	})

	ack, err := c.UploadReport(context.Background(), testReport())
	require.NoError(t, err)

	assert.Equal(t, testReport(), got)
	assert.Equal(t, SOSAck{Status: AckSynced, ID: 7, OfflineID: "sos-1", Message: "ok"}, ack)
}

func TestUpload_WireFieldNames(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.Upload(context.Background(), testReport()))

	for _, key := range []string{"latitude", "longitude", "emergencyType", "message", "clientTimestamp", "offlineId"} {
		assert.Contains(t, raw, key)
	}
	assert.Len(t, raw, 6)
}

func TestUpload_Any2xxIsSuccess(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		assert.NoError(t, c.Upload(context.Background(), testReport()), "status %d", code)
	}
}

func TestUpload_NonJSONSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "accepted")
	})
	assert.NoError(t, c.Upload(context.Background(), testReport()))
}

func TestUpload_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusInternalServerError)
	})

	err := c.Upload(context.Background(), testReport())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.Contains(t, err.Error(), "database down")
	assert.Contains(t, err.Error(), "upload sos-1")
}

func TestUpload_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	srv.Close()

	err = c.Upload(context.Background(), testReport())
	assert.Error(t, err)
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestUpload_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	assert.Error(t, c.Upload(context.Background(), testReport()))
}

func TestGetHospital(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hospitals/42", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":42,"name":"City General","latitude":12.97,"longitude":77.59,"totalNumBeds":300}`)
	})

	h, err := c.GetHospital(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), h.ID)
	assert.Equal(t, "City General", h.Name)
	require.NotNil(t, h.Latitude)
	assert.InDelta(t, 12.97, *h.Latitude, 1e-9)
	assert.Equal(t, 300, h.TotalNumBeds)
}

func TestGetHospital_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetHospital(context.Background(), 1)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestGetHospital_EmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.GetHospital(context.Background(), 1)
	assert.ErrorContains(t, err, "empty body")
}

func TestListHospitals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "20", q.Get("size"))
		assert.Equal(t, "name", q.Get("sortBy"))
		assert.Equal(t, "ASC", q.Get("sortDir"))
		_, _ = io.WriteString(w, `{
			"content": [{"id":1,"name":"A"},{"id":2,"name":"B"}],
			"totalElements": 42, "totalPages": 3, "size": 20, "number": 2,
			"first": false, "last": true, "numberOfElements": 2, "empty": false
		}`)
	})

	p, err := c.ListHospitals(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, p.Content, 2)
	assert.Equal(t, "B", p.Content[1].Name)
	assert.Equal(t, int64(42), p.TotalElements)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 2, p.Number)
	assert.True(t, p.Last)
	assert.False(t, p.First)
}

func TestListHospitals_EmptyContentNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"totalElements":0,"empty":true,"first":true,"last":true}`)
	})

	p, err := c.ListHospitals(context.Background(), -1, 5)
	require.NoError(t, err)
	assert.NotNil(t, p.Content)
	assert.Empty(t, p.Content)
}

func TestFindNearestHospital(t *testing.T) {
	var got AmbulanceRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ambulance/find-nearest", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{
			"hospitalId": 9, "hospitalName": "Mercy", "distanceInKm": 3.4,
			"availableBeds": 2, "bedId": 77, "etaMinutes": 6,
			"routeCoordinates": [[12.9,77.5],[12.91,77.51],[12.92,77.52]]
		}`)
	})

	req := AmbulanceRequest{AmbulanceID: "amb-1", Latitude: 12.9, Longitude: 77.5, RequiredBedType: BedTypeICU}
	m, err := c.FindNearestHospital(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req, got)
	assert.Equal(t, int64(9), m.HospitalID)
	assert.Equal(t, 6, m.ETAMinutes)
	require.Len(t, m.RouteCoords, 3)
	assert.Equal(t, [2]float64{12.92, 77.52}, m.RouteCoords[2])
}

func TestFindNearestHospital_NoBeds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"No available ICU beds found"}`)
	})

	_, err := c.FindNearestHospital(context.Background(), AmbulanceRequest{RequiredBedType: BedTypeICU})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "No available ICU beds")
}

func TestStatusError_Format(t *testing.T) {
	assert.Equal(t, "GET /x: status 503", (&StatusError{Method: "GET", Path: "/x", Code: 503}).Error())
}
