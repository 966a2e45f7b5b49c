package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	scheduleSheet = "Schedule"
	bookingsSheet = "Bookings"
)

// Source is the read side of the store needed to render a day.
type Source interface {
	GetBusiness(ctx context.Context, id int64) (*models.Business, error)
	GetOperatingHours(ctx context.Context, businessID int64, weekday int) (*models.OperatingHours, error)
	ListServicesByBusiness(ctx context.Context, businessID int64) ([]*models.Service, error)
	ListBookingsForDay(ctx context.Context, businessID int64, date time.Time) ([]*models.Booking, error)
}

// Exporter renders the slot grid of a business day into an xlsx workbook.
type Exporter struct {
	source Source
	logger *zerolog.Logger
}

func NewExporter(source Source, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

type serviceGrid struct {
	service *models.Service
	slots   map[models.TimeOfDay]availability.Slot
}

// ExportDay builds a workbook with two sheets: Schedule (booked/capacity per
// service and slot) and Bookings (every booking of the day).
func (e *Exporter) ExportDay(ctx context.Context, businessID int64, date time.Time) ([]byte, error) {
	business, err := e.source.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	hours, err := e.source.GetOperatingHours(ctx, businessID, models.WeekdayOf(date))
	if err != nil {
		return nil, err
	}
	services, err := e.source.ListServicesByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	dayBookings, err := e.source.ListBookingsForDay(ctx, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("error getting bookings: %w", err)
	}

	// Движок сам отбирает брони по пулу услуги, поэтому хватает одного списка на день
	grids := make([]serviceGrid, 0, len(services))
	starts := make(map[models.TimeOfDay]struct{})
	if hours != nil {
		for _, svc := range services {
			g := serviceGrid{service: svc, slots: make(map[models.TimeOfDay]availability.Slot)}
			for _, slot := range availability.BuildGrid(hours, svc, date, dayBookings) {
				g.slots[slot.Start] = slot
				starts[slot.Start] = struct{}{}
			}
			grids = append(grids, g)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", scheduleSheet); err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	if _, err := f.NewSheet(bookingsSheet); err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}

	title := fmt.Sprintf("%s, %s (%s)", business.Name, date.Format(models.DateLayout), models.WeekdayName(models.WeekdayOf(date)))
	_ = f.SetCellValue(scheduleSheet, "A1", title)
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	_ = f.SetCellStyle(scheduleSheet, "A1", "A1", titleStyle)

	if hours == nil {
		_ = f.SetCellValue(scheduleSheet, "A3", "Closed")
	} else {
		if err := writeSchedule(f, hours, grids, sortedStarts(starts)); err != nil {
			return nil, err
		}
	}

	writeBookings(f, dayBookings, services)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}

	e.logger.Info().
		Int64("business_id", businessID).
		Str("date", date.Format(models.DateLayout)).
		Int("services", len(services)).
		Int("bookings", len(dayBookings)).
		Msg("Schedule exported")
	return buf.Bytes(), nil
}

func writeSchedule(f *excelize.File, hours *models.OperatingHours, grids []serviceGrid, starts []models.TimeOfDay) error {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	freeStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	partialStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	fullStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	_ = f.SetCellValue(scheduleSheet, "A2", fmt.Sprintf("Open %s-%s, %d per slot", hours.OpenTime, hours.CloseTime, hours.MaxConcurrentPerSlot))
	_ = f.SetCellValue(scheduleSheet, "A3", "Time")
	_ = f.SetCellStyle(scheduleSheet, "A3", "A3", headerStyle)

	for i, g := range grids {
		cell, err := excelize.CoordinatesToCellName(i+2, 3)
		if err != nil {
			return err
		}
		pool := "private"
		if g.service.CompetesWithOthers {
			pool = "shared"
		}
		_ = f.SetCellValue(scheduleSheet, cell, fmt.Sprintf("%s (%d min, %s)", g.service.Name, g.service.DurationMinutes, pool))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
	}

	for r, start := range starts {
		row := r + 4
		timeCell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(scheduleSheet, timeCell, start.String())

		for i, g := range grids {
			cell, _ := excelize.CoordinatesToCellName(i+2, row)
			slot, ok := g.slots[start]
			if !ok {
				continue
			}
			_ = f.SetCellValue(scheduleSheet, cell, fmt.Sprintf("%d/%d", slot.Booked, slot.Capacity))

			style := freeStyle
			switch {
			case !slot.Available:
				style = fullStyle
			case slot.Booked > 0:
				style = partialStyle
			}
			_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 12)
	if len(grids) > 0 {
		lastCol, _ := excelize.ColumnNumberToName(len(grids) + 1)
		_ = f.SetColWidth(scheduleSheet, "B", lastCol, 24)
	}
	return nil
}

func writeBookings(f *excelize.File, bookings []*models.Booking, services []*models.Service) {
	names := make(map[int64]string, len(services))
	for _, s := range services {
		names[s.ID] = s.Name
	}

	headers := []string{"ID", "Time", "Service", "Customer", "Email", "Status", "Notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, h)
	}

	for i, b := range bookings {
		row := i + 2
		values := []any{b.ID, b.SlotTime().String(), names[b.ServiceID], b.CustomerName, b.CustomerEmail, b.Status, b.Notes}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}
	}
	_ = f.SetColWidth(bookingsSheet, "B", "G", 18)
}

func sortedStarts(set map[models.TimeOfDay]struct{}) []models.TimeOfDay {
	starts := make([]models.TimeOfDay, 0, len(set))
	for t := range set {
		starts = append(starts, t)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	return starts
}
