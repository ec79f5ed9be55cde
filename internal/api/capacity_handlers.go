package api

import (
	"net/http"

	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

func checkAvailabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		avail, err := svc.CheckAvailability(r.Context(), q.Get("date"), q.Get("time"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotAvailability(avail))
	}
}

func daySlotStatsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.GetDaySlotStats(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDaySlotStats(stats))
	}
}

func shiftCapacityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.GetShiftCapacity(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ShiftCapacityResponse{
			Date:              c.Date,
			MorningCapacity:   c.MorningCapacity,
			MorningBooked:     c.MorningBooked,
			AfternoonCapacity: c.AfternoonCapacity,
			AfternoonBooked:   c.AfternoonBooked,
		})
	}
}

func listLimitsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limits, err := svc.ListLimits(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toLimitList(limits))
	}
}

func saveLimitsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SlotLimitRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		in := make([]scheduling.SlotLimitInput, 0, len(req.Limits))
		for _, l := range req.Limits {
			in = append(in, scheduling.SlotLimitInput{TimeSlot: l.TimeSlot, Limit: l.Limit})
		}

		limits, err := svc.SaveLimits(r.Context(), in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toLimitList(limits))
	}
}
