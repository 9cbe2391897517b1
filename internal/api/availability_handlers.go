package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/scheduling"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(key string) (time.Weekday, bool) {
	if n, err := strconv.Atoi(key); err == nil {
		if n < 0 || n > 6 {
			return 0, false
		}
		return time.Weekday(n), true
	}
	d, ok := weekdayNames[strings.ToLower(key)]
	return d, ok
}

func toWeeklyTemplate(in map[string]availability.TimeRange) (availability.WeeklyTemplate, error) {
	tpl := make(availability.WeeklyTemplate, len(in))
	for key, tr := range in {
		day, ok := parseWeekday(key)
		if !ok {
			return nil, &availability.ValidationError{
				Field: "weeklyTemplate." + key,
				Err:   availability.ErrInvalidWeekday,
				Msg:   "use 0-6 (0 = Sunday) or a day name",
			}
		}
		if _, dup := tpl[day]; dup {
			return nil, &availability.ValidationError{
				Field: "weeklyTemplate." + key,
				Err:   availability.ErrInvalidWeekday,
				Msg:   fmt.Sprintf("%s given more than once", day),
			}
		}
		tpl[day] = tr
	}
	return tpl, nil
}

func pathIDs(r *http.Request) (doctorID, hospitalID string) {
	return chi.URLParam(r, "doctorID"), chi.URLParam(r, "hospitalID")
}

func getAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID := pathIDs(r)

		rec, err := svc.GetAvailability(r.Context(), doctorID, hospitalID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func saveWeeklyTemplateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID := pathIDs(r)

		var req WeeklyTemplateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}

		tpl, err := toWeeklyTemplate(req.WeeklyTemplate)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		rec, err := svc.SaveWeeklyTemplate(r.Context(), doctorID, hospitalID, tpl, req.AppointmentDurationMinutes)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func upsertSpecificDateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID := pathIDs(r)

		var req SpecificDateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		if req.IsAvailable == nil {
			writeFieldError(w, http.StatusBadRequest, "validation_failed", "isAvailable is required", "isAvailable")
			return
		}

		rec, err := svc.UpsertSpecificDate(r.Context(), doctorID, hospitalID, availability.SpecificDate{
			Date:        chi.URLParam(r, "date"),
			IsAvailable: *req.IsAvailable,
			TimeRange:   req.TimeRange,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func removeSpecificDateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID := pathIDs(r)

		rec, err := svc.RemoveSpecificDate(r.Context(), doctorID, hospitalID, chi.URLParam(r, "date"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func blockDateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID := pathIDs(r)

		var req ExceptionRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				writeDecodeError(w, err)
				return
			}
		}

		rec, err := svc.BlockDate(r.Context(), doctorID, hospitalID, chi.URLParam(r, "date"), req.Reason)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func unblockDateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID := pathIDs(r)

		rec, err := svc.UnblockDate(r.Context(), doctorID, hospitalID, chi.URLParam(r, "date"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// openSlotsHandler serves ?date= for one day or ?from=&to= for a range.
func openSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID := pathIDs(r)
		q := r.URL.Query()

		if date := q.Get("date"); date != "" {
			slots, err := svc.GetOpenSlots(r.Context(), doctorID, hospitalID, date)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, SlotsResponse{
				DoctorID:   doctorID,
				HospitalID: hospitalID,
				Date:       date,
				Slots:      slots,
			})
			return
		}

		from, to := q.Get("from"), q.Get("to")
		if from == "" || to == "" {
			writeFieldError(w, http.StatusBadRequest, "validation_failed", "pass date, or both from and to", "date")
			return
		}

		days, err := svc.OpenSlotsRange(r.Context(), doctorID, hospitalID, from, to)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotRangeResponse{
			DoctorID:   doctorID,
			HospitalID: hospitalID,
			Days:       days,
		})
	}
}
