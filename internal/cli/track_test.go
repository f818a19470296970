package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/lifeline/internal/backend"
	"github.com/lifeline/lifeline/internal/route"
)

func writeRoute(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "route.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// frames decodes JSON-lines track output.
func frames(t *testing.T, out string) []route.Frame {
	t.Helper()
	var got []route.Frame
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var f route.Frame
		require.NoError(t, json.Unmarshal(sc.Bytes(), &f), "line: %s", sc.Text())
		got = append(got, f)
	}
	require.NoError(t, sc.Err())
	return got
}

func TestTrack_RouteFileJSON(t *testing.T) {
	path := writeRoute(t, `[[12.9716, 77.5946], [12.9750, 77.6000], [12.9800, 77.6050]]`)

	out, _, err := execute(t, "--format", "json", "track", "--route", path, "--step", "20ms", "--speed", "60")
	require.NoError(t, err)

	got := frames(t, out)
	require.NotEmpty(t, got)

	first := got[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, route.Point{Lat: 12.9716, Lng: 77.5946}, first.Position)

	last := got[len(got)-1]
	assert.Equal(t, 2, last.Index)
	assert.Equal(t, route.Point{Lat: 12.9800, Lng: 77.6050}, last.Position)
	assert.Equal(t, 1.0, last.Progress)
	assert.Zero(t, last.DistanceKm)
	assert.Zero(t, last.ETAMinutes)
	assert.Equal(t, 60.0, last.SpeedKmh)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Index, got[i-1].Index)
	}
}

func TestTrack_RouteFileText(t *testing.T) {
	path := writeRoute(t, `{"routeCoordinates": [[12.97, 77.59], [12.98, 77.60]]}`)

	out, _, err := execute(t, "track", "--route", path, "--step", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Replaying 2 anchors")
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "[2/2] 12.980000,77.600000")
	assert.Contains(t, out, "Arrived.")
}

func TestTrack_DegenerateRouteUsesStraightLine(t *testing.T) {
	path := writeRoute(t, `[]`)

	out, _, err := execute(t, "--format", "json", "track", "--route", path,
		"--from", "12.97,77.59", "--to", "12.99, 77.61", "--step", "20ms")
	require.NoError(t, err)

	got := frames(t, out)
	require.NotEmpty(t, got)
	assert.Equal(t, 2, got[0].Total)
	assert.Equal(t, route.Point{Lat: 12.99, Lng: 77.61}, got[len(got)-1].Position)
}

func TestTrack_EmptyRouteNeedsEndpoints(t *testing.T) {
	path := writeRoute(t, `{"hospitalId": 1}`)

	_, _, err := execute(t, "track", "--route", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--from")
}

func TestTrack_InterruptedBeforeArrival(t *testing.T) {
	path := writeRoute(t, `[[12.97, 77.59], [12.98, 77.60], [12.99, 77.61]]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _, err := executeContext(t, ctx, "track", "--route", path, "--step", "1s")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Replay stopped.")
}

func TestTrack_RequiresSource(t *testing.T) {
	_, _, err := execute(t, "track")
	require.Error(t, err)
}

func TestTrack_NearestHospital(t *testing.T) {
	lat, lng := 12.99, 77.62
	var gotReq backend.AmbulanceRequest

	r := mux.NewRouter()
	r.HandleFunc("/api/ambulance/find-nearest", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(backend.HospitalMatch{
			HospitalID:    7,
			HospitalName:  "City General",
			DistanceInKm:  3.2,
			AvailableBeds: 4,
			BedID:         42,
			RouteCoords:   [][2]float64{{12.97, 77.59}, {12.98, 77.61}},
		})
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/hospitals/7", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(backend.Hospital{ID: 7, Name: "City General", Latitude: &lat, Longitude: &lng})
	}).Methods(http.MethodGet)
	ts := httptest.NewServer(r)
	defer ts.Close()

	out, _, err := execute(t, "track", "--nearest", "--endpoint", ts.URL,
		"--lat", "12.96", "--lon", "77.58", "--bed-type", "GENERAL", "--step", "20ms")
	require.NoError(t, err)

	assert.Equal(t, "GENERAL", gotReq.RequiredBedType)
	assert.Equal(t, 12.96, gotReq.Latitude)
	assert.Contains(t, out, "Nearest hospital: City General")
	assert.Contains(t, out, "Replaying 2 anchors")
	assert.Contains(t, out, "Arrived.")
}

func TestTrack_NearestHospitalWithoutRoute(t *testing.T) {
	lat, lng := 12.99, 77.62

	r := mux.NewRouter()
	r.HandleFunc("/api/ambulance/find-nearest", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(backend.HospitalMatch{HospitalID: 7, HospitalName: "City General"})
	})
	r.HandleFunc("/api/hospitals/7", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(backend.Hospital{ID: 7, Latitude: &lat, Longitude: &lng})
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	out, _, err := execute(t, "--format", "json", "track", "--nearest", "--endpoint", ts.URL,
		"--lat", "12.96", "--lon", "77.58", "--step", "20ms")
	require.NoError(t, err)

	got := frames(t, out)
	require.NotEmpty(t, got)
	assert.Equal(t, 2, got[0].Total)
	assert.Equal(t, route.Point{Lat: 12.96, Lng: 77.58}, got[0].Position)
	assert.Equal(t, route.Point{Lat: lat, Lng: lng}, got[len(got)-1].Position)
}

func TestTrack_NearestHospitalBackendError(t *testing.T) {
	ts := failingServer(t)

	_, _, err := execute(t, "track", "--nearest", "--endpoint", ts.URL, "--lat", "1", "--lon", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeNetwork, ErrorCode(err))
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("12.5, -3.25")
	require.NoError(t, err)
	assert.Equal(t, route.Point{Lat: 12.5, Lng: -3.25}, p)

	for _, bad := range []string{"", "12.5", "a,1", "1,b"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}
