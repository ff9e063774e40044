package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vukamap/backend/db"
	"vukamap/backend/geo"
	imgpkg "vukamap/backend/image"
	"vukamap/backend/metadata"
	"vukamap/backend/pipeline"
	"vukamap/backend/server/api"
	"vukamap/backend/vision"
)

type fakeReports struct {
	submitted *pipeline.ReportRequest
	cleanup   *pipeline.CleanupRequest
	record    *pipeline.ReportRecord
	result    *pipeline.CleanupResult
	err       error
}

func (f *fakeReports) SubmitReport(_ context.Context, req pipeline.ReportRequest) (*pipeline.ReportRecord, error) {
	f.submitted = &req
	return f.record, f.err
}

func (f *fakeReports) VerifyCleanup(_ context.Context, req pipeline.CleanupRequest) (*pipeline.CleanupResult, error) {
	f.cleanup = &req
	return f.result, f.err
}

func (f *fakeReports) GetReport(_ context.Context, id int64) (*pipeline.ReportRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.record == nil || f.record.ID != id {
		return nil, fmt.Errorf("report %d: %w", id, pipeline.ErrReportNotFound)
	}
	return f.record, nil
}

type fakeDirectory struct {
	reports []*pipeline.ReportRecord
	filter  db.ReportFilter
	users   map[string]*db.User
}

func (f *fakeDirectory) ListReports(_ context.Context, filter db.ReportFilter) ([]*pipeline.ReportRecord, error) {
	f.filter = filter
	return f.reports, nil
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (*db.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %q: %w", id, db.ErrUserNotFound)
}

var kibera = geo.Coordinate{Latitude: -1.3133, Longitude: 36.7892}

func sampleRecord() *pipeline.ReportRecord {
	loc := geo.OffsetNorth(kibera, 0.05)
	d := 0.05
	return &pipeline.ReportRecord{
		ID:            12,
		ReportedBy:    "amina",
		City:          "Nairobi",
		Coordinate:    kibera,
		Image:         []byte{0xFF, 0xD8},
		Before:        metadata.CaptureMetadata{HasGps: true, Location: &loc},
		GpsValidated:  true,
		GpsDistanceKm: &d,
		Dirtiness:     vision.Assessment{Score: 69, Strategy: vision.StrategyRemote},
		Reward:        48,
	}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "photo.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestSubmitReport(t *testing.T) {
	reports := &fakeReports{record: sampleRecord()}
	s := New(reports, &fakeDirectory{}, nil)

	w := serve(s, multipartRequest(t, "/report", map[string]string{
		"latitude":    "-1.3133",
		"longitude":   "36.7892",
		"reported_by": "amina",
		"city":        "Nairobi",
		"description": "plastic along the river bank",
	}, []byte("jpeg bytes")))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp api.ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 12, resp.Seq)
	assert.Equal(t, 69, resp.Dirtiness)
	assert.Equal(t, "remote-vision", resp.AnalysisMethod)
	assert.True(t, resp.HasExifGps)
	assert.True(t, resp.GpsValidated)
	assert.Equal(t, 48, resp.EcoCredits)

	require.NotNil(t, reports.submitted)
	assert.Equal(t, kibera, reports.submitted.Coordinate)
	assert.Equal(t, "amina", reports.submitted.ReportedBy)
	assert.Equal(t, "plastic along the river bank", reports.submitted.Description)
	assert.Equal(t, []byte("jpeg bytes"), reports.submitted.Image)
}

func TestSubmitReportErrors(t *testing.T) {
	valid := map[string]string{"latitude": "-1.3133", "longitude": "36.7892", "reported_by": "amina"}
	without := func(key string) map[string]string {
		m := map[string]string{}
		for k, v := range valid {
			if k != key {
				m[k] = v
			}
		}
		return m
	}

	testCases := []struct {
		name       string
		fields     map[string]string
		image      []byte
		pipeErr    error
		wantStatus int
	}{
		{name: "missing image", fields: valid, image: nil, wantStatus: http.StatusBadRequest},
		{name: "bad latitude", fields: map[string]string{"latitude": "north", "longitude": "36.7", "reported_by": "amina"}, image: []byte("x"), wantStatus: http.StatusBadRequest},
		{name: "missing longitude", fields: without("longitude"), image: []byte("x"), wantStatus: http.StatusBadRequest},
		{name: "missing reporter", fields: without("reported_by"), image: []byte("x"), wantStatus: http.StatusBadRequest},
		{name: "malformed image", fields: valid, image: []byte("x"), pipeErr: fmt.Errorf("%w: unknown format", imgpkg.ErrMalformedImage), wantStatus: http.StatusBadRequest},
		{name: "coordinate out of range", fields: valid, image: []byte("x"), pipeErr: pipeline.ErrInvalidCoordinate, wantStatus: http.StatusBadRequest},
		{name: "store failure", fields: valid, image: []byte("x"), pipeErr: errors.New("connection refused"), wantStatus: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeReports{err: tc.pipeErr}, &fakeDirectory{}, nil)
			w := serve(s, multipartRequest(t, "/report", tc.fields, tc.image))
			assert.Equal(t, tc.wantStatus, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotContains(t, resp.Error, "connection refused")
		})
	}
}

func TestVerifyCleanup(t *testing.T) {
	reports := &fakeReports{result: &pipeline.CleanupResult{
		ReportID: 12,
		Outcome: pipeline.VerificationOutcome{
			LocationMatches: true,
			DistanceKm:      0.03,
			Cleanliness:     vision.Assessment{Score: 80, Strategy: vision.StrategyHeuristic},
			Verified:        true,
			Message:         "Cleanup verified! Location match + 80% clean",
		},
		Resolved:       true,
		CreditsAwarded: 48,
	}}
	s := New(reports, &fakeDirectory{}, nil)

	w := serve(s, multipartRequest(t, "/report/12/cleanup", map[string]string{
		"latitude":   "-1.3133",
		"longitude":  "36.7892",
		"claimed_by": "baraka",
	}, []byte("after")))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp api.CleanupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, api.CleanupResponse{
		Seq:             12,
		Resolved:        true,
		Verified:        true,
		LocationMatches: true,
		DistanceKm:      0.03,
		Cleanliness:     80,
		AnalysisMethod:  "heuristic-fallback",
		Message:         "Cleanup verified! Location match + 80% clean",
		CreditsAwarded:  48,
	}, resp)

	require.NotNil(t, reports.cleanup)
	assert.EqualValues(t, 12, reports.cleanup.ReportID)
	assert.Equal(t, "baraka", reports.cleanup.ClaimedBy)
}

func TestVerifyCleanupErrors(t *testing.T) {
	fields := map[string]string{"latitude": "-1.3133", "longitude": "36.7892", "claimed_by": "baraka"}
	testCases := []struct {
		name       string
		path       string
		pipeErr    error
		wantStatus int
	}{
		{name: "bad seq", path: "/report/abc/cleanup", wantStatus: http.StatusBadRequest},
		{name: "zero seq", path: "/report/0/cleanup", wantStatus: http.StatusBadRequest},
		{name: "unknown report", path: "/report/12/cleanup", pipeErr: fmt.Errorf("report 12: %w", pipeline.ErrReportNotFound), wantStatus: http.StatusNotFound},
		{name: "already resolved", path: "/report/12/cleanup", pipeErr: fmt.Errorf("report 12: %w", pipeline.ErrAlreadyResolved), wantStatus: http.StatusConflict},
		{name: "ledger failure", path: "/report/12/cleanup", pipeErr: fmt.Errorf("report 12 resolved, %w", pipeline.ErrRewardTransfer), wantStatus: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeReports{err: tc.pipeErr}, &fakeDirectory{}, nil)
			w := serve(s, multipartRequest(t, tc.path, fields, []byte("after")))
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestReadReport(t *testing.T) {
	s := New(&fakeReports{record: sampleRecord()}, &fakeDirectory{}, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/report/12", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.EqualValues(t, 12, got["id"])
	assert.Equal(t, true, got["gps_validated"])
	assert.NotContains(t, got, "image")

	w = serve(s, httptest.NewRequest(http.MethodGet, "/report/13", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReadReportFeature(t *testing.T) {
	s := New(&fakeReports{record: sampleRecord()}, &fakeDirectory{}, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/report/12/geojson", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var f struct {
		Type     string `json:"type"`
		ID       int64  `json:"id"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &f))
	assert.Equal(t, "Feature", f.Type)
	assert.EqualValues(t, 12, f.ID)
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, []float64{36.7892, -1.3133}, f.Geometry.Coordinates)
	assert.EqualValues(t, 69, f.Properties["dirtiness"])
	assert.Equal(t, false, f.Properties["resolved"])
	assert.Contains(t, f.Properties, "exif_location")
}

func TestListReports(t *testing.T) {
	dir := &fakeDirectory{reports: []*pipeline.ReportRecord{sampleRecord(), sampleRecord()}}
	s := New(&fakeReports{}, dir, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/reports?limit=5000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, db.ReportFilter{OnlyOpen: true, Limit: maxListLimit}, dir.filter)

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 2)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/reports?open=false", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, db.ReportFilter{OnlyOpen: false, Limit: defaultListLimit}, dir.filter)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/reports?city=+nairobi+", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, db.ReportFilter{OnlyOpen: true, City: "nairobi", Limit: defaultListLimit}, dir.filter)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/reports?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHotspots(t *testing.T) {
	busy := make([]*pipeline.ReportRecord, 0, 12)
	for i := 0; i < 12; i++ {
		r := sampleRecord()
		r.ID = int64(i + 1)
		busy = append(busy, r)
	}
	lone := sampleRecord()
	lone.ID = 40
	evidenced := geo.Coordinate{Latitude: -1.44, Longitude: 37.09}
	lone.Before = metadata.CaptureMetadata{HasGps: true, Location: &evidenced}
	strayed := sampleRecord()
	strayed.ID = 41
	strayed.Before = metadata.CaptureMetadata{HasGps: true, Location: &geo.Coordinate{Latitude: 0.5, Longitude: 36.8}}
	dir := &fakeDirectory{reports: append(busy, lone, strayed)}
	s := New(&fakeReports{}, dir, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/hotspots?south=-1.45&west=36.65&north=-1.15&east=37.10", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, dir.filter.Viewport)
	assert.True(t, dir.filter.OnlyOpen)
	assert.Equal(t, geo.Viewport{South: -1.45, West: 36.65, North: -1.15, East: 37.10}, *dir.filter.Viewport)

	var fc struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 2, "report evidenced outside the viewport is left out")
	assert.EqualValues(t, 12, fc.Features[0].Properties["count"])
	assert.EqualValues(t, 69, fc.Features[0].Properties["mean_dirtiness"])
	assert.NotContains(t, fc.Features[0].Properties, "report_id")
	assert.EqualValues(t, 1, fc.Features[1].Properties["count"])
	assert.EqualValues(t, 40, fc.Features[1].Properties["report_id"])
	assert.Equal(t, []float64{37.09, -1.44}, fc.Features[1].Geometry.Coordinates, "pinned at the before-image GPS")
}

func TestHotspotsBadViewport(t *testing.T) {
	s := New(&fakeReports{}, &fakeDirectory{}, nil)
	for _, q := range []string{
		"/hotspots",
		"/hotspots?south=-1.45&west=36.65&north=-1.15",
		"/hotspots?south=5&west=36.65&north=-1.15&east=37.10",
		"/hotspots?south=-1.45&west=36.65&north=91&east=37.10",
	} {
		w := serve(s, httptest.NewRequest(http.MethodGet, q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestReadUser(t *testing.T) {
	dir := &fakeDirectory{users: map[string]*db.User{"baraka": {ID: "baraka", EcoCredits: 81, WasteRemovedKg: 41}}}
	s := New(&fakeReports{}, dir, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/users/baraka", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"baraka","eco_credits":81,"waste_removed_kg":41}`, w.Body.String())

	w = serve(s, httptest.NewRequest(http.MethodGet, "/users/nobody", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHelpAndMetrics(t *testing.T) {
	s := New(&fakeReports{}, &fakeDirectory{}, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/help", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/report/:seq/cleanup")

	w = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
