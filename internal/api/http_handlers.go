package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type slotsResponse struct {
	ServiceID int64               `json:"service_id"`
	Date      string              `json:"date"`
	Slots     []string            `json:"slots"`
	Grid      []availability.Slot `json:"grid,omitempty"`
}

type hoursResponse struct {
	BusinessID int64                  `json:"business_id"`
	Date       string                 `json:"date"`
	Weekday    string                 `json:"weekday"`
	Closed     bool                   `json:"closed"`
	Hours      *models.OperatingHours `json:"hours,omitempty"`
}

type createBookingRequest struct {
	ServiceID     int64  `json:"service_id" validate:"required,gt=0"`
	ScheduledAt   string `json:"scheduled_at" validate:"required,datetime=2006-01-02T15:04"`
	CustomerName  string `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	Notes         string `json:"notes" validate:"max=1000"`
}

type changeStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=pending confirmed canceled completed"`
	Version int64  `json:"version" validate:"required,gt=0"`
}

type businessRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=300"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"max=100"`
	Zipcode string `json:"zipcode" validate:"max=20"`
}

type hoursRequest struct {
	OpenTime             string `json:"open_time" validate:"required,datetime=15:04"`
	CloseTime            string `json:"close_time" validate:"required,datetime=15:04"`
	MaxConcurrentPerSlot int    `json:"max_concurrent_per_slot" validate:"required,gt=0"`
}

type serviceRequest struct {
	Name               string `json:"name" validate:"required,max=200"`
	Description        string `json:"description" validate:"max=2000"`
	DurationMinutes    int    `json:"duration_minutes" validate:"required,gt=0"`
	PriceCents         int64  `json:"price_cents" validate:"gte=0"`
	CompetesWithOthers *bool  `json:"competes_with_others"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleGetSlots(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.badRequest(w, err)
		return
	}

	slots, err := s.deps.Bookings.GetAvailableSlots(r.Context(), serviceID, date)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	resp := slotsResponse{ServiceID: serviceID, Date: date.Format(models.DateLayout), Slots: slots}

	if detail := r.URL.Query().Get("detail"); detail == "1" || detail == "true" {
		grid, err := s.deps.Bookings.GetSlotGrid(r.Context(), serviceID, date)
		if err != nil {
			s.serviceError(w, r, err)
			return
		}
		resp.Grid = grid
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleResolveHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.badRequest(w, err)
		return
	}

	hours, err := s.deps.Bookings.ResolveHours(r.Context(), businessID, date)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hoursResponse{
		BusinessID: businessID,
		Date:       date.Format(models.DateLayout),
		Weekday:    models.WeekdayName(models.WeekdayOf(date)),
		Closed:     hours == nil,
		Hours:      hours,
	})
}

func (s *HTTPServer) handleGetWeek(w http.ResponseWriter, r *http.Request) {
	businessID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	week, err := s.deps.Catalog.GetWeek(r.Context(), businessID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	days := make([]map[string]any, 0, len(week))
	for wd, hours := range week {
		day := map[string]any{"weekday": wd, "name": models.WeekdayName(wd), "closed": hours == nil}
		if hours != nil {
			day["hours"] = hours
		}
		days = append(days, day)
	}
	writeJSON(w, http.StatusOK, map[string]any{"business_id": businessID, "days": days})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	start, err := time.Parse(models.DateTimeLayout, req.ScheduledAt)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	booking := &models.Booking{
		ServiceID:      req.ServiceID,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		Notes:          req.Notes,
		ScheduledStart: start,
	}
	if err := s.deps.Bookings.CreateBooking(r.Context(), booking); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := s.deps.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req changeStatusRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	changedBy := "api"
	if key := strings.TrimSpace(r.Header.Get(s.auth.keys.apiKeyHeader)); key != "" {
		if client, ok := s.auth.keys.clients[key]; ok && client.Name != "" {
			changedBy = client.Name
		}
	}

	booking, err := s.deps.Bookings.ChangeStatus(r.Context(), id, req.Version, req.Status, changedBy)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req businessRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	b := &models.Business{
		Name:    req.Name,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Zipcode: req.Zipcode,
	}
	if err := s.deps.Catalog.CreateBusiness(r.Context(), b); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Catalog.ListBusinesses(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"businesses": list})
}

func (s *HTTPServer) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := s.deps.Catalog.GetBusiness(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleSetHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	weekday, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil {
		s.badRequest(w, fmt.Errorf("weekday must be a number 0..6"))
		return
	}
	var req hoursRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	open, err := models.ParseTimeOfDay(req.OpenTime)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	closeAt, err := models.ParseTimeOfDay(req.CloseTime)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	hours := &models.OperatingHours{
		BusinessID:           businessID,
		Weekday:              weekday,
		OpenTime:             open,
		CloseTime:            closeAt,
		MaxConcurrentPerSlot: req.MaxConcurrentPerSlot,
	}
	if err := s.deps.Catalog.SetOperatingHours(r.Context(), hours); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hours)
}

func (s *HTTPServer) handleCloseWeekday(w http.ResponseWriter, r *http.Request) {
	businessID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	weekday, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil {
		s.badRequest(w, fmt.Errorf("weekday must be a number 0..6"))
		return
	}
	if err := s.deps.Catalog.CloseWeekday(r.Context(), businessID, weekday); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	businessID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req serviceRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	svc := serviceFromRequest(req)
	svc.BusinessID = businessID
	if err := s.deps.Catalog.CreateService(r.Context(), svc); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	businessID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := s.deps.Catalog.ListServices(r.Context(), businessID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": list})
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	svc, err := s.deps.Catalog.GetService(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req serviceRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	svc := serviceFromRequest(req)
	svc.ID = id
	if err := s.deps.Catalog.UpdateService(r.Context(), svc); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleExportDay(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "export is not configured")
		return
	}
	businessID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.badRequest(w, err)
		return
	}

	data, err := s.deps.Exporter.ExportDay(r.Context(), businessID, date)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("schedule_%d_%s.xlsx", businessID, date.Format(models.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func serviceFromRequest(req serviceRequest) *models.Service {
	competes := true
	if req.CompetesWithOthers != nil {
		competes = *req.CompetesWithOthers
	}
	return &models.Service{
		Name:               strings.TrimSpace(req.Name),
		Description:        req.Description,
		DurationMinutes:    req.DurationMinutes,
		PriceCents:         req.PriceCents,
		CompetesWithOthers: competes,
	}
}

func (s *HTTPServer) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(w, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		s.badRequest(w, fmt.Errorf("invalid JSON body: %w", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.badRequest(w, err)
		return false
	}
	return true
}

func (s *HTTPServer) badRequest(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		writeError(w, http.StatusBadRequest, "validation_error", validationErrors[0].Translate(s.translator))
		return
	}
	writeError(w, http.StatusBadRequest, "validation_error", err.Error())
}

func (s *HTTPServer) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)
	if apiErr.status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, apiErr.status, apiErr.code, apiErr.message)
}
