package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var scheduledAt time.Time
		switch {
		case req.ScheduledAt != nil:
			scheduledAt = *req.ScheduledAt
		case req.Date != "" && req.Time != "":
			slot, err := scheduling.ParseTimeSlot(req.Time)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: err.Error(), Field: "time"})
				return
			}
			at, err := scheduling.At(req.Date, slot, svc.Location())
			if err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: err.Error(), Field: "date"})
				return
			}
			scheduledAt = at
		}

		appt, err := svc.CreateAppointment(r.Context(), actorFrom(r.Context()), scheduling.NewAppointmentInput{
			CompanyID:          req.CompanyID,
			EmployeeID:         req.EmployeeID,
			ExamTypeID:         req.ExamTypeID,
			ScheduledAt:        scheduledAt,
			Status:             scheduling.AppointmentStatus(req.Status),
			HasAdditionalExams: req.HasAdditionalExams,
			Sector:             req.Sector,
			Description:        req.Description,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler serves the day view (?date=, clinic only) and the
// company view (?company_id=). Companies always get their own appointments.
func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFrom(r.Context())
		q := r.URL.Query()

		if date := q.Get("date"); date != "" {
			if !actor.IsClinic() {
				writeError(w, http.StatusForbidden, "forbidden", "clinic role required")
				return
			}
			appts, err := svc.ListAppointmentsByDate(r.Context(), date)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toAppointmentList(appts))
			return
		}

		companyID := q.Get("company_id")
		if !actor.IsClinic() {
			if companyID != "" && companyID != actor.CompanyID {
				writeError(w, http.StatusForbidden, "forbidden", "companies can only list their own appointments")
				return
			}
			companyID = actor.CompanyID
		}
		if companyID == "" {
			writeError(w, http.StatusBadRequest, "missing_filter", "date or company_id is required")
			return
		}

		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		appts, err := svc.ListAppointmentsByCompany(r.Context(), companyID, limit, offset)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actorFrom(r.Context()), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func changeStatusHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req ChangeStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), actorFrom(r.Context()), id, scheduling.AppointmentStatus(req.Status))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), actorFrom(r.Context()), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func attachFileHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req AttachmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.AttachFile(r.Context(), actorFrom(r.Context()), id, scheduling.Attachment{URL: req.URL, Name: req.Name})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func detachFileHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.DetachFile(r.Context(), actorFrom(r.Context()), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func archiveAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.ArchiveAppointment(r.Context(), actorFrom(r.Context()), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), actorFrom(r.Context()), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
