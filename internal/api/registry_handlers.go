package api

import (
	"net/http"

	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

func listBlockedDatesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		dates, err := svc.ListBlockedDates(r.Context(), q.Get("from"), q.Get("to"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]BlockedDateResponse, 0, len(dates))
		for _, b := range dates {
			out = append(out, toBlockedDate(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func blockDateHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockDateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		b, err := svc.AddBlockedDate(r.Context(), req.Date, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockedDate(*b))
	}
}

func unblockDateHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := svc.RemoveBlockedDate(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listBlockedSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListBlockedTimeSlots(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]BlockedTimeSlotResponse, 0, len(slots))
		for _, b := range slots {
			out = append(out, toBlockedTimeSlot(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func blockSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockTimeSlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		b, err := svc.AddBlockedTimeSlot(r.Context(), req.Date, req.TimeSlot, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockedTimeSlot(*b))
	}
}

func unblockSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := svc.RemoveBlockedTimeSlot(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
