package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/scheduling"
)

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeFieldError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID", "id")
		return uuid.Nil, false
	}
	return id, true
}

func createAppointmentHandler(svc *scheduling.Service, defaultOffsets []int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}

		switch req.Type {
		case "", booking.TypeConsultation, booking.TypeFollowUp:
		default:
			writeFieldError(w, http.StatusBadRequest, "validation_failed", "type must be consultation or follow-up", "type")
			return
		}

		prefs := booking.DefaultReminderPreferences(defaultOffsets)
		if req.ReminderPreferences != nil {
			intervals := prefs.Intervals
			prefs = *req.ReminderPreferences
			if len(prefs.Intervals) == 0 {
				prefs.Intervals = intervals
			}
		}

		appt, err := svc.RequestBooking(r.Context(), booking.BookRequest{
			DoctorID:            req.DoctorID,
			HospitalID:          req.HospitalID,
			PatientID:           req.PatientID,
			Date:                req.Date,
			Time:                req.Time,
			Type:                req.Type,
			Notes:               req.Notes,
			ReminderPreferences: prefs,
			ActorID:             actorID(r, req.PatientID),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler serves ?patientId= (paged) or
// ?doctorId=&hospitalId=&date= (one day's active bookings).
func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if patientID := q.Get("patientId"); patientID != "" {
			limit, err := queryInt(q.Get("limit"), 20)
			if err != nil {
				writeFieldError(w, http.StatusBadRequest, "validation_failed", "limit must be an integer", "limit")
				return
			}
			offset, err := queryInt(q.Get("offset"), 0)
			if err != nil {
				writeFieldError(w, http.StatusBadRequest, "validation_failed", "offset must be an integer", "offset")
				return
			}

			appts, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, AppointmentListResponse{
				Appointments: toAppointmentList(appts),
				Limit:        limit,
				Offset:       offset,
			})
			return
		}

		doctorID, hospitalID, date := q.Get("doctorId"), q.Get("hospitalId"), q.Get("date")
		if doctorID == "" || hospitalID == "" || date == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "pass patientId, or doctorId, hospitalId and date")
			return
		}

		appts, err := svc.ListForDay(r.Context(), doctorID, hospitalID, date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: toAppointmentList(appts)})
	}
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id, actorID(r, "anonymous"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionStatusHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req TransitionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}

		appt, err := svc.TransitionStatus(r.Context(), id, booking.AppointmentStatus(req.Status), actorID(r, "anonymous"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, req.Date, req.Time, actorID(r, "anonymous"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listRemindersHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		events, err := svc.Reminders(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reminders": events})
	}
}
