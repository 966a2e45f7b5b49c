package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/events"
	"slotbook/internal/export"
	"slotbook/internal/models"
	"slotbook/internal/repository"
	"slotbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// 2030-01-07 is a Monday.
const (
	testMonday  = "2030-01-07"
	testTuesday = "2030-01-08"
)

type apiFixture struct {
	db       *database.DB
	bus      *events.EventBus
	bookings *service.BookingService
	catalog  *service.CatalogService
	server   *HTTPServer
	ts       *httptest.Server
}

func newAPIFixture(t *testing.T, cfg config.APIConfig) *apiFixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	cache := repository.NewMemorySlotCache(30 * time.Second)
	bookingCfg := config.BookingConfig{AllowedDurations: []int{30, 60}}

	bookings := service.NewBookingService(db, cache, bus, bookingCfg, &logger)
	bookings.SetClock(func() time.Time { return time.Date(2030, 1, 6, 12, 0, 0, 0, time.UTC) })
	catalog := service.NewCatalogService(db, cache, bookingCfg, &logger)

	server, err := NewHTTPServer(cfg, HTTPDeps{
		Bookings: bookings,
		Catalog:  catalog,
		Exporter: export.NewExporter(db, &logger),
		Ready:    func(ctx context.Context) error { return db.PingContext(ctx) },
	}, &logger)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{db: db, bus: bus, bookings: bookings, catalog: catalog, server: server, ts: ts}
}

func openAPIConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

// seedSalon creates a business open Monday 09:00-12:00 with one seat per slot
// and two hour-long services sharing that seat.
func (f *apiFixture) seedSalon(t *testing.T) (business *models.Business, cut, color *models.Service) {
	t.Helper()
	ctx := context.Background()

	business = &models.Business{Name: "Salon"}
	require.NoError(t, f.catalog.CreateBusiness(ctx, business))
	require.NoError(t, f.catalog.SetOperatingHours(ctx, &models.OperatingHours{
		BusinessID:           business.ID,
		Weekday:              0,
		OpenTime:             models.NewTimeOfDay(9, 0),
		CloseTime:            models.NewTimeOfDay(12, 0),
		MaxConcurrentPerSlot: 1,
	}))

	cut = &models.Service{BusinessID: business.ID, Name: "Cut", DurationMinutes: 60, CompetesWithOthers: true}
	require.NoError(t, f.catalog.CreateService(ctx, cut))
	color = &models.Service{BusinessID: business.ID, Name: "Color", DurationMinutes: 60, CompetesWithOthers: true}
	require.NoError(t, f.catalog.CreateService(ctx, color))
	return business, cut, color
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
