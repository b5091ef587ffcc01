package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kruplan/kruplan/internal/events"
	"github.com/kruplan/kruplan/internal/metrics"
	"github.com/kruplan/kruplan/internal/persist"
	"github.com/kruplan/kruplan/internal/remote"
	"github.com/kruplan/kruplan/internal/schedule"
	"github.com/kruplan/kruplan/internal/storage"
)

func newTestServer(t *testing.T, opts Options) (*Server, *schedule.Store) {
	t.Helper()

	bus := events.NewBus()
	store := schedule.NewStore(bus)
	store.Install([]schedule.Sheet{schedule.DefaultSheet()}, "")

	coord, err := persist.NewCoordinator(store, storage.NewMemStore(), remote.NewMockClient(), bus, persist.Config{})
	require.NoError(t, err)

	srv, err := New(store, coord, opts)
	require.NoError(t, err)
	return srv, store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateAndListSheets(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sheets", map[string]string{"name": "ม.2/1", "grade": "ม.2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created["id"])

	rec = doJSON(t, h, http.MethodGet, "/api/sheets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sheets []schedule.Sheet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sheets))
	require.Len(t, sheets, 2)
}

func TestCreateSheetRequiresName(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sheets", map[string]string{"grade": "ม.2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "validation", resp["code"])
}

func TestGetSheetNotFound(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/sheets/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlotLifecycle(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPut, "/api/slots", map[string]any{
		"day": "Monday", "period": 1, "subjectCode": "ค21101", "subjectName": "คณิตศาสตร์",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, store.ActiveSheet().Slots, 1)

	// Same coordinate replaces, never duplicates.
	rec = doJSON(t, h, http.MethodPut, "/api/slots", map[string]any{
		"day": "Monday", "period": 1, "subjectCode": "อ21101", "subjectName": "อังกฤษ",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, store.ActiveSheet().Slots, 1)
	require.Equal(t, "อ21101", store.ActiveSheet().Slots[0].SubjectCode)

	rec = doJSON(t, h, http.MethodDelete, "/api/slots/Monday/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, store.ActiveSheet().Slots)
}

func TestSlotValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := doJSON(t, srv.Handler(), http.MethodPut, "/api/slots", map[string]any{
		"day": "Monday", "period": 0, "subjectCode": "MATH",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetActiveSheetValidatesExistence(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPut, "/api/sheets/active", map[string]string{"id": "nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	id := store.CreateSheet("other", "")
	rec = doJSON(t, h, http.MethodPut, "/api/sheets/active", map[string]string{"id": id})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, id, store.ActiveSheetID())
}

func TestSchoolInfoFansOutToAllSheets(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	store.CreateSheet("second", "")

	rec := doJSON(t, srv.Handler(), http.MethodPut, "/api/school-info", map[string]any{
		"startTime": "09:00", "endTime": "15:00", "minutesPerPeriod": 45,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, sheet := range store.Sheets() {
		require.Equal(t, "09:00", sheet.SchoolInfo.StartTime)
		require.Equal(t, 45, sheet.SchoolInfo.MinutesPerPeriod)
	}
}

func TestSubjectCRUDAndCascade(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/subjects", schedule.Subject{ID: "sub-1", Code: "MATH", Name: "คณิต"})
	require.Equal(t, http.StatusCreated, rec.Code)

	doJSON(t, h, http.MethodPut, "/api/slots", map[string]any{
		"day": "Monday", "period": 1, "subjectCode": "MATH",
	})

	rec = doJSON(t, h, http.MethodDelete, "/api/subjects/sub-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, store.ActiveSheet().Subjects)
	require.Empty(t, store.ActiveSheet().Slots, "deleting a subject must clear its slots")
}

func TestAllRoomsEndpoint(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	h := srv.Handler()

	doJSON(t, h, http.MethodPost, "/api/rooms", schedule.Room{ID: "room-1", Name: "501"})
	store.CreateSheet("second", "")
	doJSON(t, h, http.MethodPost, "/api/rooms", schedule.Room{ID: "room-2", Name: "502"})

	rec := doJSON(t, h, http.MethodGet, "/api/rooms/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rooms []schedule.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 2)
}

func TestStatusEndpoint(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "saved", status.SaveStatus)
	require.Equal(t, store.ActiveSheetID(), status.ActiveSheetID)
	require.Equal(t, 1, status.SheetCount)
}

func TestExportEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/sheets/active/export?format=markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	require.Contains(t, rec.Body.String(), "# "+schedule.DefaultSheetName)

	rec = doJSON(t, h, http.MethodGet, "/api/sheets/active/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "<table>")

	rec = doJSON(t, h, http.MethodGet, "/api/sheets/active/export?format=pdf", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.IncLoadSource(metrics.LoadLocal)

	srv, _ := newTestServer(t, Options{Registry: reg})
	res := doJSON(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "kruplan_load_sources_total")
}

func TestPatchPeriodConfig(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPatch, "/api/period-configs/1", map[string]any{"time": "10:00 - 11:00"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "10:00 - 11:00", store.ActiveSheet().PeriodConfigs[0].Time)

	rec = doJSON(t, h, http.MethodPatch, "/api/period-configs/nope", map[string]any{"time": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
