package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

// CreateAppointmentRequest takes either scheduled_at or the date + time pair.
type CreateAppointmentRequest struct {
	CompanyID          string     `json:"company_id"`
	EmployeeID         string     `json:"employee_id"`
	ExamTypeID         string     `json:"exam_type_id"`
	ScheduledAt        *time.Time `json:"scheduled_at,omitempty"`
	Date               string     `json:"date,omitempty"`
	Time               string     `json:"time,omitempty"`
	Status             string     `json:"status,omitempty"`
	HasAdditionalExams bool       `json:"has_additional_exams"`
	Sector             string     `json:"sector,omitempty"`
	Description        string     `json:"description,omitempty"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type AttachmentRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID              `json:"id"`
	CompanyID          string                 `json:"company_id"`
	EmployeeID         string                 `json:"employee_id"`
	ExamTypeID         string                 `json:"exam_type_id"`
	ScheduledAt        time.Time              `json:"scheduled_at"`
	Date               string                 `json:"date"`
	TimeSlot           string                 `json:"time_slot"`
	Hour               int                    `json:"hour"`
	YearMonth          string                 `json:"year_month"`
	Shift              string                 `json:"shift"`
	Status             string                 `json:"status"`
	HasAdditionalExams bool                   `json:"has_additional_exams"`
	Attachment         *scheduling.Attachment `json:"attachment,omitempty"`
	Sector             string                 `json:"sector,omitempty"`
	Description        string                 `json:"description,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
	CanceledAt         *time.Time             `json:"canceled_at,omitempty"`
	CanceledBy         *scheduling.CanceledBy `json:"canceled_by,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		CompanyID:          a.CompanyID,
		EmployeeID:         a.EmployeeID,
		ExamTypeID:         a.ExamTypeID,
		ScheduledAt:        a.ScheduledAt,
		Date:               a.DateKey,
		TimeSlot:           a.TimeSlot.String(),
		Hour:               a.Hour,
		YearMonth:          a.YearMonth,
		Shift:              string(a.Shift),
		Status:             string(a.Status),
		HasAdditionalExams: a.HasAdditionalExams,
		Attachment:         a.Attachment,
		Sector:             a.Sector,
		Description:        a.Description,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		CompletedAt:        a.CompletedAt,
		CanceledAt:         a.CanceledAt,
		CanceledBy:         a.CanceledBy,
	}
}

func toAppointmentList(appts []scheduling.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

type SlotAvailabilityResponse struct {
	TimeSlot      string  `json:"time_slot"`
	Limit         int     `json:"limit"`
	Current       int     `json:"current"`
	Available     bool    `json:"available"`
	OccupancyRate float64 `json:"occupancy_rate"`
	Reason        string  `json:"reason,omitempty"`
	Message       string  `json:"message,omitempty"`
}

func toSlotAvailability(a scheduling.SlotAvailability) SlotAvailabilityResponse {
	return SlotAvailabilityResponse{
		TimeSlot:      a.TimeSlot.String(),
		Limit:         a.Limit,
		Current:       a.Current,
		Available:     a.Available,
		OccupancyRate: a.OccupancyRate,
		Reason:        string(a.Reason),
		Message:       a.Message,
	}
}

type DaySlotStatsResponse struct {
	Date           string                     `json:"date"`
	DateBlocked    bool                       `json:"date_blocked"`
	TotalAvailable int                        `json:"total_available"`
	TotalBooked    int                        `json:"total_booked"`
	BookedByShift  map[string]int             `json:"booked_by_shift"`
	Slots          []SlotAvailabilityResponse `json:"slots"`
}

func toDaySlotStats(s scheduling.DaySlotStats) DaySlotStatsResponse {
	resp := DaySlotStatsResponse{
		Date:           s.Date,
		DateBlocked:    s.DateBlocked,
		TotalAvailable: s.TotalAvailable,
		TotalBooked:    s.TotalBooked,
		BookedByShift:  make(map[string]int, len(s.BookedByShift)),
		Slots:          make([]SlotAvailabilityResponse, 0, len(s.Slots)),
	}
	for shift, n := range s.BookedByShift {
		resp.BookedByShift[string(shift)] = n
	}
	for _, a := range s.Slots {
		resp.Slots = append(resp.Slots, toSlotAvailability(a))
	}
	return resp
}

type ShiftCapacityResponse struct {
	Date              string `json:"date"`
	MorningCapacity   int    `json:"morning_capacity"`
	MorningBooked     int    `json:"morning_booked"`
	AfternoonCapacity int    `json:"afternoon_capacity"`
	AfternoonBooked   int    `json:"afternoon_booked"`
}

type SlotLimitRequest struct {
	Limits []SlotLimitEntry `json:"limits"`
}

type SlotLimitEntry struct {
	TimeSlot string `json:"time_slot"`
	Limit    int    `json:"limit"`
}

type EffectiveLimitResponse struct {
	TimeSlot   string `json:"time_slot"`
	Limit      int    `json:"limit"`
	Configured bool   `json:"configured"`
}

func toLimitList(limits []scheduling.EffectiveLimit) []EffectiveLimitResponse {
	out := make([]EffectiveLimitResponse, 0, len(limits))
	for _, l := range limits {
		out = append(out, EffectiveLimitResponse{
			TimeSlot:   l.TimeSlot.String(),
			Limit:      l.Limit,
			Configured: l.Configured,
		})
	}
	return out
}

type BlockDateRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type BlockedDateResponse struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BlockTimeSlotRequest struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
	Reason   string `json:"reason"`
}

type BlockedTimeSlotResponse struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	TimeSlot  string    `json:"time_slot"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toBlockedDate(b scheduling.BlockedDate) BlockedDateResponse {
	return BlockedDateResponse{ID: b.ID, Date: b.Date, Reason: b.Reason, CreatedAt: b.CreatedAt}
}

func toBlockedTimeSlot(b scheduling.BlockedTimeSlot) BlockedTimeSlotResponse {
	return BlockedTimeSlotResponse{
		ID:        b.ID,
		Date:      b.Date,
		TimeSlot:  b.TimeSlot.String(),
		Reason:    b.Reason,
		CreatedAt: b.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
