/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the reconciled domain records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DURATIONS AND HOURS:
  Durations cross the wire twice: as "HH:MM:SS" strings for per-day
  fields (what attendance operators read), and as decimal hours for
  the monthly summary (what payroll consumes). Decimal hours use
  shopspring/decimal so 7h30m serializes as "7.5", not a float artifact.

SEE ALSO:
  - handlers.go: Uses these types
  - attendance/types.go: The domain records these views project
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digitali/attendance-engine/attendance"
)

// =============================================================================
// ATTENDANCE VIEWS
// =============================================================================

// DayRecordDTO is one reconciled single-session row.
type DayRecordDTO struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Shift      string `json:"shift,omitempty"`
	FirstIn    string `json:"first_in,omitempty"`
	LastOut    string `json:"last_out,omitempty"`
	TotalTime  string `json:"total_time"`
	LateEntry  string `json:"late_entry,omitempty"`
	EarlyExit  string `json:"early_exit,omitempty"`
	Overtime   string `json:"overtime,omitempty"`
	Status     string `json:"status"`
}

func toDayRecordDTO(rec attendance.DayRecord) DayRecordDTO {
	return DayRecordDTO{
		EmployeeID: string(rec.Employee),
		Date:       rec.Day.String(),
		Shift:      rec.ShiftName,
		FirstIn:    timeOfDayString(rec.FirstIn),
		LastOut:    timeOfDayString(rec.LastOut),
		TotalTime:  clockString(rec.TotalTime),
		LateEntry:  durationString(rec.LateEntry),
		EarlyExit:  durationString(rec.EarlyExit),
		Overtime:   durationString(rec.Overtime),
		Status:     string(rec.Status),
	}
}

// DutySlotDTO is one IN/OUT pair of a multi-session day.
type DutySlotDTO struct {
	In       string `json:"in,omitempty"`
	Out      string `json:"out,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// MandaysDTO is one reconciled multi-session row. Empty trailing slots
// are omitted.
type MandaysDTO struct {
	EmployeeID string        `json:"employee_id"`
	Date       string        `json:"date"`
	Slots      []DutySlotDTO `json:"slots"`
	TotalHours string        `json:"total_hours"`
}

func toMandaysDTO(rec attendance.MandaysRecord) MandaysDTO {
	dto := MandaysDTO{
		EmployeeID: string(rec.Employee),
		Date:       rec.Day.String(),
		TotalHours: clockString(rec.TotalHours),
	}
	for i := range rec.Slots {
		s := &rec.Slots[i]
		if s.Empty() {
			continue
		}
		slot := DutySlotDTO{
			In:  timeOfDayString(s.In),
			Out: timeOfDayString(s.Out),
		}
		if s.Complete() {
			slot.Duration = clockString(s.Duration)
		}
		dto.Slots = append(dto.Slots, slot)
	}
	return dto
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// MonthlySummaryDTO aggregates one employee's month for payroll. Hour
// totals are decimal (7h30m -> "7.5").
type MonthlySummaryDTO struct {
	EmployeeID    string          `json:"employee_id"`
	Month         string          `json:"month"` // "2024-01"
	DaysPresent   int             `json:"days_present"`
	DaysHalf      int             `json:"days_half"`
	DaysAbsent    int             `json:"days_absent"`
	DaysWeekOff   int             `json:"days_week_off_worked"`
	MissedPunches int             `json:"missed_punches"`
	TotalHours    decimal.Decimal `json:"total_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
}

// RangeResponse wraps a list of day records.
type RangeResponse struct {
	Records []DayRecordDTO `json:"records"`
	Count   int            `json:"count"`
}

// =============================================================================
// SHIFTS
// =============================================================================

// ShiftDTO is the wire form of a shift definition. Times are "HH:MM:SS",
// durations are integer minutes; absent threshold fields stay null.
type ShiftDTO struct {
	Name                  string `json:"name"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	ToleranceBeforeStart  int    `json:"tolerance_before_start_minutes"`
	ToleranceAfterStart   int    `json:"tolerance_after_start_minutes"`
	GraceAfterStart       int    `json:"grace_after_start_minutes"`
	GraceBeforeEnd        int    `json:"grace_before_end_minutes"`
	AbsentThreshold       *int   `json:"absent_threshold_minutes"`
	HalfDayThreshold      *int   `json:"half_day_threshold_minutes"`
	FullDayThreshold      *int   `json:"full_day_threshold_minutes"`
	OvertimeBeforeStart   int    `json:"overtime_before_start_minutes"`
	OvertimeAfterEnd      int    `json:"overtime_after_end_minutes"`
	LunchDuration         int    `json:"lunch_duration_minutes"`
	IncludeLunchInHalfDay bool   `json:"include_lunch_in_half_day"`
	IncludeLunchInFullDay bool   `json:"include_lunch_in_full_day"`
}

func toShiftDTO(def attendance.ShiftDefinition) ShiftDTO {
	return ShiftDTO{
		Name:                  def.Name,
		StartTime:             def.StartTime.String(),
		EndTime:               def.EndTime.String(),
		ToleranceBeforeStart:  int(def.ToleranceBeforeStart / time.Minute),
		ToleranceAfterStart:   int(def.ToleranceAfterStart / time.Minute),
		GraceAfterStart:       int(def.GraceAfterStart / time.Minute),
		GraceBeforeEnd:        int(def.GraceBeforeEnd / time.Minute),
		AbsentThreshold:       minutesPtr(def.AbsentThreshold),
		HalfDayThreshold:      minutesPtr(def.HalfDayThreshold),
		FullDayThreshold:      minutesPtr(def.FullDayThreshold),
		OvertimeBeforeStart:   int(def.OvertimeBeforeStart / time.Minute),
		OvertimeAfterEnd:      int(def.OvertimeAfterEnd / time.Minute),
		LunchDuration:         int(def.LunchDuration / time.Minute),
		IncludeLunchInHalfDay: def.IncludeLunchInHalfDay,
		IncludeLunchInFullDay: def.IncludeLunchInFullDay,
	}
}

func (dto ShiftDTO) toDomain() (attendance.ShiftDefinition, error) {
	start, err := attendance.ParseTimeOfDay(dto.StartTime)
	if err != nil {
		return attendance.ShiftDefinition{}, err
	}
	end, err := attendance.ParseTimeOfDay(dto.EndTime)
	if err != nil {
		return attendance.ShiftDefinition{}, err
	}
	return attendance.ShiftDefinition{
		Name:                  dto.Name,
		StartTime:             start,
		EndTime:               end,
		ToleranceBeforeStart:  time.Duration(dto.ToleranceBeforeStart) * time.Minute,
		ToleranceAfterStart:   time.Duration(dto.ToleranceAfterStart) * time.Minute,
		GraceAfterStart:       time.Duration(dto.GraceAfterStart) * time.Minute,
		GraceBeforeEnd:        time.Duration(dto.GraceBeforeEnd) * time.Minute,
		AbsentThreshold:       minutesDuration(dto.AbsentThreshold),
		HalfDayThreshold:      minutesDuration(dto.HalfDayThreshold),
		FullDayThreshold:      minutesDuration(dto.FullDayThreshold),
		OvertimeBeforeStart:   time.Duration(dto.OvertimeBeforeStart) * time.Minute,
		OvertimeAfterEnd:      time.Duration(dto.OvertimeAfterEnd) * time.Minute,
		LunchDuration:         time.Duration(dto.LunchDuration) * time.Minute,
		IncludeLunchInHalfDay: dto.IncludeLunchInHalfDay,
		IncludeLunchInFullDay: dto.IncludeLunchInFullDay,
	}, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents a directory entry in API responses.
type EmployeeDTO struct {
	ID              string `json:"id"`
	ExternalID      string `json:"external_id"`
	Name            string `json:"name"`
	Shift           string `json:"shift,omitempty"`
	FirstWeeklyOff  *int   `json:"first_weekly_off,omitempty"`
	SecondWeeklyOff *int   `json:"second_weekly_off,omitempty"`
}

func toEmployeeDTO(emp attendance.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              string(emp.ID),
		ExternalID:      emp.ExternalID,
		Name:            emp.Name,
		Shift:           emp.ShiftName,
		FirstWeeklyOff:  weekdayInt(emp.FirstWeeklyOff),
		SecondWeeklyOff: weekdayInt(emp.SecondWeeklyOff),
	}
}

func (dto EmployeeDTO) toDomain() attendance.Employee {
	return attendance.Employee{
		ID:              attendance.EmployeeID(dto.ID),
		ExternalID:      dto.ExternalID,
		Name:            dto.Name,
		ShiftName:       dto.Shift,
		FirstWeeklyOff:  intWeekday(dto.FirstWeeklyOff),
		SecondWeeklyOff: intWeekday(dto.SecondWeeklyOff),
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// RunDTO is one reconciliation run in the audit trail.
type RunDTO struct {
	ID          string `json:"id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Processed   int    `json:"processed"`
	Skipped     int    `json:"skipped"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

func toRunDTO(run attendance.Run) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Processed: run.Processed,
		Skipped:   run.Skipped,
		Status:    string(run.Status),
		Error:     run.Error,
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

// ReconcileResponse reports one triggered run.
type ReconcileResponse struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// ResetCursorRequest rewinds the cursor to just before a date.
type ResetCursorRequest struct {
	Before string `json:"before"` // "2006-01-02"
}

// ResetCursorResponse reports the new cursor position.
type ResetCursorResponse struct {
	Cursor int64 `json:"cursor"`
}

// MarkAbsenteesRequest backfills absent rows for recent days.
type MarkAbsenteesRequest struct {
	End  string `json:"end"`  // "2006-01-02", defaults to yesterday
	Days int    `json:"days"` // defaults to 1
}

// MarkAbsenteesResponse reports how many rows were created.
type MarkAbsenteesResponse struct {
	Created int `json:"created"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func timeOfDayString(t *attendance.TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func durationString(d *time.Duration) string {
	if d == nil {
		return ""
	}
	return clockString(*d)
}

func clockString(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// decimalHours renders a duration as fractional hours, two places.
func decimalHours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).
		Div(decimal.NewFromInt(3600)).
		Round(2)
}

func minutesPtr(d *time.Duration) *int {
	if d == nil {
		return nil
	}
	m := int(*d / time.Minute)
	return &m
}

func minutesDuration(m *int) *time.Duration {
	if m == nil {
		return nil
	}
	d := time.Duration(*m) * time.Minute
	return &d
}

func weekdayInt(w *time.Weekday) *int {
	if w == nil {
		return nil
	}
	i := int(*w)
	return &i
}

func intWeekday(i *int) *time.Weekday {
	if i == nil {
		return nil
	}
	w := time.Weekday(*i)
	return &w
}
