package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/internal/storage"
	"github.com/chrissnell/wastealarm/pkg/responseformat"
	"github.com/gorilla/mux"
	"go.uber.org/multierr"
)

// maxUploadBytes caps the body of an upload request.
const maxUploadBytes = 64 << 20

// Handlers contains the HTTP handlers for the REST API
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new Handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// UploadRequest is the body of POST /api/uploads
type UploadRequest struct {
	MeterDataFile string          `json:"meter_data_file"`
	WeatherFile   string          `json:"weather_file"`
	Records       []UploadedAlarm `json:"records"`
}

// UploadedAlarm is one record of an upload. Date parts and hour are optional
// and derived from Date and Time when absent; a derived hour must still lie
// within 0-23.
type UploadedAlarm struct {
	Meter       string  `json:"meter"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Year        *int    `json:"year,omitempty"`
	Month       *int    `json:"month,omitempty"`
	Day         *int    `json:"day,omitempty"`
	Hour        *int    `json:"hour,omitempty"`
	Consumption float64 `json:"consumption"`
	Temperature float64 `json:"temperature"`
}

func (u UploadedAlarm) record() pattern.AlarmRecord {
	r := pattern.AlarmRecord{
		Meter:       u.Meter,
		Date:        u.Date,
		Time:        u.Time,
		Hour:        pattern.NoHour,
		Consumption: u.Consumption,
		Temperature: u.Temperature,
	}
	if u.Year != nil && u.Month != nil && u.Day != nil {
		r.Year, r.Month, r.Day = *u.Year, *u.Month, *u.Day
	}
	if u.Hour != nil {
		r.Hour = *u.Hour
	}
	return r
}

// AlarmsResponse is the body of GET /api/alarms
type AlarmsResponse struct {
	Scope           string                     `json:"scope"`
	Alarms          []pattern.AlarmRecord      `json:"alarms"`
	TotalAlarms     int                        `json:"total_alarms"`
	FilteredRecords int                        `json:"filtered_records"`
	FilteredMeters  int                        `json:"filtered_meters"`
	Verdicts        map[string]pattern.Verdict `json:"verdicts,omitempty"`
}

// MeterSummary is one line of the pattern analysis overview
type MeterSummary struct {
	Meter           string          `json:"meter"`
	Verdict         pattern.Verdict `json:"verdict"`
	Alarms          int             `json:"alarms"`
	MeanConsumption float64         `json:"mean_consumption"`
	NightPercent    float64         `json:"night_percent"`
	MorningPercent  float64         `json:"morning_percent"`
	EveningPercent  float64         `json:"evening_percent"`
	UniqueHours     int             `json:"unique_hours"`
}

func summarizeMeter(a pattern.Analysis) MeterSummary {
	return MeterSummary{
		Meter:           a.Meter,
		Verdict:         a.Verdict,
		Alarms:          a.Records,
		MeanConsumption: a.Signals.MeanConsumption,
		NightPercent:    a.Signals.NightRatio * 100,
		MorningPercent:  a.Signals.MorningRatio * 100,
		EveningPercent:  a.Signals.EveningRatio * 100,
		UniqueHours:     a.Signals.UniqueHours,
	}
}

// sendJSON sends a JSON response
func (h *Handlers) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// sendJSONWithStatus sends a JSON response with a specific status code
func (h *Handlers) sendJSONWithStatus(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response in JSON format
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		if errs := multierr.Errors(err); len(errs) > 1 {
			violations := make([]string, len(errs))
			for i, e := range errs {
				violations[i] = e.Error()
			}
			errorResponse["violations"] = violations
		}
	}

	if statusCode >= http.StatusInternalServerError {
		h.controller.logger.Errorw(message, "error", err)
	}

	json.NewEncoder(w).Encode(errorResponse)
}

// respond writes data as JSON or MessagePack, as negotiated with the client
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, data interface{}) {
	contentType, err := h.formatter.Negotiate(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Unsupported response format", err)
		return
	}
	if err := h.formatter.WriteResponse(w, contentType, http.StatusOK, data); err != nil {
		h.controller.logger.Warnf("error writing response: %v", err)
	}
}

// GetSettings returns the active pattern settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.store.Settings(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read pattern settings", err)
		return
	}
	h.sendJSON(w, settings)
}

// UpdateSettings replaces the pattern settings. Fields missing from the body
// keep their current value.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.controller.store.Settings(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read pattern settings", err)
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	if err := storage.ValidateSettings(settings); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid pattern settings", err)
		return
	}

	if err := h.controller.store.ReplaceSettings(r.Context(), settings); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to store pattern settings", err)
		return
	}
	h.controller.invalidate()

	h.sendJSON(w, settings)
}

// GetAlarms returns the stored alarms. The default scope "waste" drops every
// meter classified as warm water; scope "all" returns the log unfiltered.
func (h *Handlers) GetAlarms(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "waste"
	}
	if scope != "waste" && scope != "all" {
		h.sendError(w, http.StatusBadRequest, "scope must be 'waste' or 'all'", nil)
		return
	}

	alarms, err := h.controller.store.Alarms(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read alarms", err)
		return
	}

	resp := AlarmsResponse{
		Scope:       scope,
		Alarms:      alarms,
		TotalAlarms: len(alarms),
	}

	if scope == "waste" {
		settings, err := h.controller.store.Settings(r.Context())
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, "Failed to read pattern settings", err)
			return
		}

		res := pattern.FilterWasteConcurrent(alarms, settings, h.controller.classifier.Workers)
		resp.Alarms = res.Waste
		resp.FilteredRecords = res.FilteredRecords
		resp.FilteredMeters = res.FilteredMeters
		resp.Verdicts = res.Verdicts
	}

	h.respond(w, r, resp)
}

// ClearAlarms removes all alarms and the upload history
func (h *Handlers) ClearAlarms(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.store.Clear(r.Context()); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to clear alarms", err)
		return
	}
	h.controller.invalidate()

	h.sendJSON(w, map[string]string{"message": "all alarms and uploads cleared"})
}

// GetUploads returns the upload history, newest first
func (h *Handlers) GetUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.controller.store.Uploads(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read upload history", err)
		return
	}
	h.respond(w, r, uploads)
}

// CreateUpload appends a batch of alarms to the log
func (h *Handlers) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	records := make([]pattern.AlarmRecord, 0, len(req.Records))
	var invalid error
	for i, a := range req.Records {
		if a.Meter == "" {
			invalid = multierr.Append(invalid, fmt.Errorf("record %d has no meter", i))
			continue
		}
		r := a.record().Normalize()
		if r.Hour < 0 || r.Hour > 23 {
			invalid = multierr.Append(invalid, fmt.Errorf("record %d has hour %d outside 0-23", i, r.Hour))
			continue
		}
		records = append(records, r)
	}
	if invalid != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid alarm records", invalid)
		return
	}

	upload, err := h.controller.store.AppendUpload(r.Context(), storage.Upload{
		MeterDataFile: req.MeterDataFile,
		WeatherFile:   req.WeatherFile,
	}, records)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to store upload", err)
		return
	}
	h.controller.invalidate()

	h.sendJSONWithStatus(w, http.StatusCreated, upload)
}

// DeleteUpload removes one upload batch and its alarms
func (h *Handlers) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.controller.store.DeleteUpload(r.Context(), id)
	if errors.Is(err, storage.ErrUploadNotFound) {
		h.sendError(w, http.StatusNotFound, "Upload not found", err)
		return
	}
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to delete upload", err)
		return
	}
	h.controller.invalidate()

	h.sendJSON(w, map[string]string{"message": "upload deleted", "id": id})
}

// GetMeters returns the pattern analysis overview, busiest meter first
func (h *Handlers) GetMeters(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.controller.summary(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to analyze meters", err)
		return
	}

	out := make([]MeterSummary, len(analyses))
	for i, a := range analyses {
		out[i] = summarizeMeter(a)
	}
	h.respond(w, r, out)
}

// GetMeter returns the full analysis of one meter
func (h *Handlers) GetMeter(w http.ResponseWriter, r *http.Request) {
	meter := mux.Vars(r)["meter"]

	analyses, err := h.controller.summary(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to analyze meters", err)
		return
	}

	for _, a := range analyses {
		if a.Meter == meter {
			h.respond(w, r, a)
			return
		}
	}
	h.sendError(w, http.StatusNotFound, "Meter not found", nil)
}

// GetHealth reports the last health check of the storage backend. It answers
// 503 until a check has passed.
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	backends := h.controller.health.GetAllHealth()

	status := storage.StatusHealthy
	if len(backends) == 0 {
		status = storage.StatusUnhealthy
	}
	for _, b := range backends {
		if b.Status != storage.StatusHealthy {
			status = storage.StatusUnhealthy
		}
	}

	code := http.StatusOK
	if status != storage.StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	h.sendJSONWithStatus(w, code, map[string]interface{}{
		"status":   status,
		"backends": backends,
	})
}
