/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes reconciled attendance data and the engine's administrative
  operations via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the reconciler and stores.

ENDPOINTS:
  Attendance:
    GET  /api/attendance/{employee}              One day (?date=)
    GET  /api/attendance/{employee}/range        Date range (?from=&to=)
    GET  /api/attendance/{employee}/monthly      Monthly summary (?month=)
    GET  /api/attendance/{employee}/missed       Missed punches (?from=&to=)
    GET  /api/mandays/{employee}                 Multi-session day (?date=)

  Shifts:
    GET  /api/shifts                             Catalog listing
    POST /api/shifts                             Create/update + invalidate

  Employees:
    GET  /api/employees                          Directory listing
    POST /api/employees                          Create/update entry

  Reconciliation:
    POST /api/reconciliation/run                 Trigger one run
    POST /api/reconciliation/reset-cursor        Rewind for rebuild
    GET  /api/reconciliation/runs                Run audit trail
    POST /api/admin/absentees                    Backfill absent rows

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record/employee/shift not found
  - 409: A reconciliation run is already executing
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: The interval runner behind the manual trigger
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digitali/attendance-engine/attendance"
	"github.com/digitali/attendance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *attendance.Reconciler
	Catalog attendance.ShiftCatalog
	Runs    *RunRecorder
}

// NewHandler wires a handler around the store and engine.
func NewHandler(store *sqlite.Store, engine *attendance.Reconciler, catalog attendance.ShiftCatalog) *Handler {
	return &Handler{
		Store:   store,
		Engine:  engine,
		Catalog: catalog,
		Runs:    NewRunRecorder(store, engine),
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// GetAttendance returns one reconciled day for an employee.
// GET /api/attendance/{employee}?date=2024-01-10
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "employee"))
	day, err := queryDay(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Engine.GetAttendance(r.Context(), emp, day)
	if err != nil {
		if attendance.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "no attendance record")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toDayRecordDTO(rec))
}

// GetAttendanceRange returns the day records in [from, to].
// GET /api/attendance/{employee}/range?from=2024-01-01&to=2024-01-31
func (h *Handler) GetAttendanceRange(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "employee"))
	from, err := queryDay(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.Store.ListDays(r.Context(), emp, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RangeResponse{Records: make([]DayRecordDTO, 0, len(records)), Count: len(records)}
	for _, rec := range records {
		resp.Records = append(resp.Records, toDayRecordDTO(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetMonthlySummary aggregates one employee's month for payroll.
// GET /api/attendance/{employee}/monthly?month=2024-01
func (h *Handler) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "employee"))
	month := r.URL.Query().Get("month")
	first, err := attendance.ParseDay(month + "-01")
	if err != nil {
		respondError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	records, err := h.Store.ListDays(r.Context(), emp, first, first.EndOfMonth())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := MonthlySummaryDTO{EmployeeID: string(emp), Month: month}
	var total, overtime time.Duration
	for _, rec := range records {
		switch rec.Status {
		case attendance.StatusPresent, attendance.StatusInsufficientHours:
			summary.DaysPresent++
		case attendance.StatusHalfDay:
			summary.DaysHalf++
		case attendance.StatusAbsent:
			summary.DaysAbsent++
		case attendance.StatusWorkedWeekOff:
			summary.DaysWeekOff++
		case attendance.StatusMissedPunch:
			summary.MissedPunches++
		}
		total += rec.TotalTime
		if rec.Overtime != nil {
			overtime += *rec.Overtime
		}
	}
	summary.TotalHours = decimalHours(total)
	summary.OvertimeHours = decimalHours(overtime)
	respondJSON(w, http.StatusOK, summary)
}

// GetMissedPunches lists days whose sessions never closed.
// GET /api/attendance/{employee}/missed?from=2024-01-01&to=2024-01-31
func (h *Handler) GetMissedPunches(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "employee"))
	from, err := queryDay(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.Store.ListDays(r.Context(), emp, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RangeResponse{Records: []DayRecordDTO{}}
	for _, rec := range records {
		if rec.Status == attendance.StatusMissedPunch {
			resp.Records = append(resp.Records, toDayRecordDTO(rec))
		}
	}
	resp.Count = len(resp.Records)
	respondJSON(w, http.StatusOK, resp)
}

// GetMandays returns the multi-session row for a day.
// GET /api/mandays/{employee}?date=2024-01-10
func (h *Handler) GetMandays(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "employee"))
	day, err := queryDay(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Engine.GetMandays(r.Context(), emp, day)
	if err != nil {
		if attendance.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "no mandays record")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toMandaysDTO(rec))
}

// =============================================================================
// SHIFTS
// =============================================================================

// ListShifts returns the shift catalog.
// GET /api/shifts
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.Store.AllShifts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ShiftDTO, 0, len(shifts))
	for _, s := range shifts {
		out = append(out, toShiftDTO(s))
	}
	respondJSON(w, http.StatusOK, out)
}

// SaveShift creates or updates a shift, then invalidates the catalog so
// the next reconciliation run sees the change.
// POST /api/shifts
func (h *Handler) SaveShift(w http.ResponseWriter, r *http.Request) {
	var dto ShiftDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if dto.Name == "" {
		respondError(w, http.StatusBadRequest, "shift name is required")
		return
	}

	def, err := dto.toDomain()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.SaveShift(r.Context(), def); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Catalog.Invalidate()
	respondJSON(w, http.StatusOK, toShiftDTO(def))
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// ListEmployees returns the directory.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.All(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		out = append(out, toEmployeeDTO(e))
	}
	respondJSON(w, http.StatusOK, out)
}

// SaveEmployee creates or updates a directory entry.
// POST /api/employees
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var dto EmployeeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if dto.ID == "" || dto.ExternalID == "" {
		respondError(w, http.StatusBadRequest, "id and external_id are required")
		return
	}

	if err := h.Store.SaveEmployee(r.Context(), dto.toDomain()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// TriggerReconcile runs one reconciliation pass immediately.
// POST /api/reconciliation/run
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	processed, skipped, err := h.Runs.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, attendance.ErrRunInProgress) {
			respondError(w, http.StatusConflict, "a reconciliation run is already in progress")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ReconcileResponse{Processed: processed, Skipped: skipped})
}

// ResetCursor rewinds the engine's cursor so history is rebuilt.
// POST /api/reconciliation/reset-cursor
func (h *Handler) ResetCursor(w http.ResponseWriter, r *http.Request) {
	var req ResetCursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	day, err := attendance.ParseDay(req.Before)
	if err != nil {
		respondError(w, http.StatusBadRequest, "before must be YYYY-MM-DD")
		return
	}

	cursor, err := h.Engine.ResetCursor(r.Context(), day.Time)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[API] cursor reset to %d (before %s)", cursor, req.Before)
	respondJSON(w, http.StatusOK, ResetCursorResponse{Cursor: cursor})
}

// ListRuns returns the recent run audit trail.
// GET /api/reconciliation/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context(), 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunDTO(run))
	}
	respondJSON(w, http.StatusOK, out)
}

// MarkAbsentees backfills status-A rows for days without any record.
// POST /api/admin/absentees
func (h *Handler) MarkAbsentees(w http.ResponseWriter, r *http.Request) {
	var req MarkAbsenteesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	end := attendance.DayOf(time.Now()).AddDays(-1)
	if req.End != "" {
		var err error
		end, err = attendance.ParseDay(req.End)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
	}
	days := req.Days
	if days <= 0 {
		days = 1
	}

	created, err := h.Engine.MarkAbsentees(r.Context(), end, days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, MarkAbsenteesResponse{Created: created})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func queryDay(r *http.Request, param string) (attendance.Day, error) {
	return attendance.ParseDay(r.URL.Query().Get(param))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
