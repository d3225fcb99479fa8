package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/internal/storage"
	"github.com/chrissnell/wastealarm/internal/storage/sqlite"
	"github.com/chrissnell/wastealarm/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()

	logger := zap.NewNop().Sugar()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "alarms.db"), nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, store, storage.NewHealthManager(),
		config.APIData{}, config.ClassifierData{Workers: 2}, logger)
	require.NoError(t, err)
	return ctrl
}

func do(t *testing.T, c *Controller, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	c.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func intp(v int) *int { return &v }

func uploaded(meter string, year, month, day, hour int, consumption float64) UploadedAlarm {
	return UploadedAlarm{
		Meter:       meter,
		Date:        fmt.Sprintf("%02d-%02d-%04d", day, month, year),
		Time:        fmt.Sprintf("%02d:00", hour),
		Year:        intp(year),
		Month:       intp(month),
		Day:         intp(day),
		Hour:        intp(hour),
		Consumption: consumption,
		Temperature: 20,
	}
}

// warmWaterMeter is ten small morning draws on ten days.
func warmWaterMeter(meter string) []UploadedAlarm {
	var out []UploadedAlarm
	for i := 0; i < 10; i++ {
		out = append(out, uploaded(meter, 2024, 6, i+1, 6+i%4, 0.2))
	}
	return out
}

// wasteMeter is twenty large night alarms in runs of 7, 7 and 6 hours.
func wasteMeter(meter string) []UploadedAlarm {
	var out []UploadedAlarm
	for day, hours := range []int{7, 7, 6} {
		for h := 0; h < hours; h++ {
			out = append(out, uploaded(meter, 2024, 7, day+1, h, 1.8))
		}
	}
	return out
}

func seedUpload(t *testing.T, c *Controller) storage.Upload {
	t.Helper()

	records := append(warmWaterMeter("warm"), wasteMeter("waste")...)
	rec := do(t, c, http.MethodPost, "/api/uploads", UploadRequest{
		MeterDataFile: "meters.csv",
		WeatherFile:   "weather.txt",
		Records:       records,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var u storage.Upload
	decode(t, rec, &u)
	return u
}

func TestSettingsRoundTrip(t *testing.T) {
	c := newTestController(t)

	rec := do(t, c, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got pattern.Settings
	decode(t, rec, &got)
	assert.Equal(t, pattern.DefaultSettings(), got)

	rec = do(t, c, http.MethodPut, "/api/settings", map[string]interface{}{"continuous_threshold": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, c, http.MethodGet, "/api/settings", nil)
	decode(t, rec, &got)
	want := pattern.DefaultSettings()
	want.ContinuousThreshold = 5
	assert.Equal(t, want, got)
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	c := newTestController(t)

	rec := do(t, c, http.MethodPut, "/api/settings", map[string]interface{}{
		"morning_peak_start":         11,
		"max_consumption_warm_water": 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "Invalid pattern settings", body["error"])
	assert.Len(t, body["violations"], 2)

	rec = do(t, c, http.MethodPut, "/api/settings", map[string]interface{}{"no_such_field": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAndFilterAlarms(t *testing.T) {
	c := newTestController(t)
	u := seedUpload(t, c)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, 30, u.TotalAlarms)
	assert.Equal(t, 2, u.UniqueMeters)
	assert.Equal(t, "meters.csv", u.MeterDataFile)

	var waste AlarmsResponse
	rec := do(t, c, http.MethodGet, "/api/alarms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &waste)

	assert.Equal(t, "waste", waste.Scope)
	assert.Equal(t, 30, waste.TotalAlarms)
	assert.Len(t, waste.Alarms, 20)
	assert.Equal(t, 10, waste.FilteredRecords)
	assert.Equal(t, 1, waste.FilteredMeters)
	assert.Equal(t, pattern.Waste, waste.Verdicts["waste"])
	assert.Equal(t, pattern.WarmWater, waste.Verdicts["warm"])
	for _, a := range waste.Alarms {
		assert.Equal(t, "waste", a.Meter)
	}

	var all AlarmsResponse
	rec = do(t, c, http.MethodGet, "/api/alarms?scope=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &all)
	assert.Len(t, all.Alarms, 30)
	assert.Zero(t, all.FilteredRecords)

	// Most recent day first.
	assert.Equal(t, 7, all.Alarms[0].Month)
	assert.Equal(t, 3, all.Alarms[0].Day)

	rec = do(t, c, http.MethodGet, "/api/alarms?scope=some", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDerivesMissingFields(t *testing.T) {
	c := newTestController(t)

	rec := do(t, c, http.MethodPost, "/api/uploads", UploadRequest{
		Records: []UploadedAlarm{{Meter: "871687400000000009", Date: "05-06-2024", Time: "23:00", Consumption: 0.5}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, c, http.MethodGet, "/api/meters/871687400000000009", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var a pattern.Analysis
	decode(t, rec, &a)
	assert.True(t, a.ShortSeries)
	assert.Equal(t, pattern.Waste, a.Verdict)
	assert.Equal(t, 1, a.Signals.UniqueDays)
}

func TestAlarmsServeDerivedFields(t *testing.T) {
	c := newTestController(t)

	rec := do(t, c, http.MethodPost, "/api/uploads", UploadRequest{
		Records: []UploadedAlarm{
			{Meter: "871687400000000010", Date: "14-08-2024", Time: "21:00", Consumption: 1.1},
			{Meter: "871687400000000010", Date: "14-08-2024", Time: "22:00", Consumption: 1.2},
			{Meter: "871687400000000010", Date: "14-08-2024", Time: "23:00", Consumption: 1.3},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, scope := range []string{"all", "waste"} {
		t.Run(scope, func(t *testing.T) {
			rec := do(t, c, http.MethodGet, "/api/alarms?scope="+scope, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp AlarmsResponse
			decode(t, rec, &resp)
			require.Len(t, resp.Alarms, 3)
			for i, a := range resp.Alarms {
				assert.Equal(t, 21+i, a.Hour)
				assert.Equal(t, 2024, a.Year)
				assert.Equal(t, 8, a.Month)
				assert.Equal(t, 14, a.Day)
			}
		})
	}
}

func TestUploadRejectsInvalidRecords(t *testing.T) {
	c := newTestController(t)

	rec := do(t, c, http.MethodPost, "/api/uploads", UploadRequest{
		Records: []UploadedAlarm{
			{Date: "01-06-2024", Time: "03:00", Consumption: 1},
			{Meter: "a", Hour: intp(24), Consumption: 1},
			{Meter: "b", Date: "01-06-2024", Time: "25:00", Consumption: 1},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Len(t, body["violations"], 3)

	rec = do(t, c, http.MethodGet, "/api/uploads", nil)
	var uploads []storage.Upload
	decode(t, rec, &uploads)
	assert.Empty(t, uploads)
}

func TestMetersSummary(t *testing.T) {
	c := newTestController(t)
	seedUpload(t, c)

	rec := do(t, c, http.MethodGet, "/api/meters", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary []MeterSummary
	decode(t, rec, &summary)
	require.Len(t, summary, 2)

	assert.Equal(t, "waste", summary[0].Meter)
	assert.Equal(t, 20, summary[0].Alarms)
	assert.Equal(t, pattern.Waste, summary[0].Verdict)
	assert.InDelta(t, 1.8, summary[0].MeanConsumption, 1e-9)
	assert.InDelta(t, 90.0, summary[0].NightPercent, 1e-9)

	assert.Equal(t, "warm", summary[1].Meter)
	assert.Equal(t, pattern.WarmWater, summary[1].Verdict)
	assert.InDelta(t, 100.0, summary[1].MorningPercent, 1e-9)
	assert.Equal(t, 4, summary[1].UniqueHours)

	rec = do(t, c, http.MethodGet, "/api/meters/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetersAsMsgPack(t *testing.T) {
	c := newTestController(t)
	seedUpload(t, c)

	rec := do(t, c, http.MethodGet, "/api/meters?format=msgpack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var summary []map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary, 2)
	assert.Equal(t, "waste", summary[0]["meter"])

	rec = do(t, c, http.MethodGet, "/api/meters?format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryCacheInvalidatedByWrites(t *testing.T) {
	c := newTestController(t)
	seedUpload(t, c)

	var before []MeterSummary
	decode(t, do(t, c, http.MethodGet, "/api/meters", nil), &before)
	require.Len(t, before, 2)

	// Raising the short-series bar turns the warm-water meter into waste.
	rec := do(t, c, http.MethodPut, "/api/settings", map[string]interface{}{"min_pattern_occurrences": 11})
	require.Equal(t, http.StatusOK, rec.Code)

	var after []MeterSummary
	decode(t, do(t, c, http.MethodGet, "/api/meters", nil), &after)
	require.Len(t, after, 2)
	assert.Equal(t, pattern.Waste, after[1].Verdict)
}

func TestDeleteUploadAndClear(t *testing.T) {
	c := newTestController(t)
	first := seedUpload(t, c)
	seedUpload(t, c)

	var uploads []storage.Upload
	decode(t, do(t, c, http.MethodGet, "/api/uploads", nil), &uploads)
	require.Len(t, uploads, 2)

	rec := do(t, c, http.MethodDelete, "/api/uploads/"+first.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, c, http.MethodDelete, "/api/uploads/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var all AlarmsResponse
	decode(t, do(t, c, http.MethodGet, "/api/alarms?scope=all", nil), &all)
	assert.Len(t, all.Alarms, 30)

	rec = do(t, c, http.MethodDelete, "/api/alarms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	decode(t, do(t, c, http.MethodGet, "/api/alarms?scope=all", nil), &all)
	assert.Empty(t, all.Alarms)

	var summary []MeterSummary
	decode(t, do(t, c, http.MethodGet, "/api/meters", nil), &summary)
	assert.Empty(t, summary)
}

func TestHealth(t *testing.T) {
	c := newTestController(t)

	rec := do(t, c, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no check has run yet")

	c.health.UpdateHealth("sqlite", c.store.CheckHealth(context.Background()))

	rec = do(t, c, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status   string                    `json:"status"`
		Backends map[string]storage.Health `json:"backends"`
	}
	decode(t, rec, &body)
	assert.Equal(t, storage.StatusHealthy, body.Status)
	assert.Contains(t, body.Backends, "sqlite")
}

func TestUnknownMethodIsRejected(t *testing.T) {
	c := newTestController(t)

	rec := do(t, c, http.MethodPatch, "/api/settings", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
