package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
	StatusNoShow    AppointmentStatus = "no_show"
	StatusArchived  AppointmentStatus = "archived"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCanceled, StatusNoShow, StatusArchived:
		return true
	}
	return false
}

// Occupying reports whether an appointment in this status holds a seat in its slot.
func (s AppointmentStatus) Occupying() bool {
	return s == StatusScheduled || s == StatusCompleted
}

// occupyingStatuses is the status set counted against slot limits.
var occupyingStatuses = []AppointmentStatus{StatusScheduled, StatusCompleted}

type Role string

const (
	RoleClinic  Role = "clinic"
	RoleCompany Role = "company"
)

// Actor is the authenticated caller, as supplied by the identity provider.
type Actor struct {
	ID        string
	Role      Role
	CompanyID string
}

func (a Actor) IsClinic() bool {
	return a.Role == RoleClinic
}

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// CanceledBy records who canceled an appointment.
type CanceledBy struct {
	ActorID string `json:"actor_id"`
	Role    Role   `json:"role"`
}

type Appointment struct {
	ID                 uuid.UUID
	CompanyID          string
	EmployeeID         string
	ExamTypeID         string
	ScheduledAt        time.Time
	Status             AppointmentStatus
	HasAdditionalExams bool
	Attachment         *Attachment
	Sector             string
	Description        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
	CanceledAt         *time.Time
	CanceledBy         *CanceledBy

	// Derived from ScheduledAt in the clinic time zone.
	DateKey   string
	TimeSlot  TimeSlot
	Hour      int
	YearMonth string
	Shift     Shift
}

// NewAppointmentInput is what a booking request carries.
type NewAppointmentInput struct {
	CompanyID          string
	EmployeeID         string
	ExamTypeID         string
	ScheduledAt        time.Time
	Status             AppointmentStatus
	HasAdditionalExams bool
	Sector             string
	Description        string
}

type SlotLimit struct {
	TimeSlot  TimeSlot
	Limit     int
	UpdatedAt time.Time
}

// EffectiveLimit is one row of the resolved limit table.
type EffectiveLimit struct {
	TimeSlot   TimeSlot
	Limit      int
	Configured bool
}

type BlockedDate struct {
	ID        uuid.UUID
	Date      string
	Reason    string
	CreatedAt time.Time
}

type BlockedTimeSlot struct {
	ID        uuid.UUID
	Date      string
	TimeSlot  TimeSlot
	Reason    string
	CreatedAt time.Time
}

type ShiftCapacity struct {
	Date              string
	MorningCapacity   int
	MorningBooked     int
	AfternoonCapacity int
	AfternoonBooked   int
	UpdatedAt         time.Time
}

func (c ShiftCapacity) Booked(s Shift) int {
	if s == ShiftMorning {
		return c.MorningBooked
	}
	return c.AfternoonBooked
}

func (c ShiftCapacity) Capacity(s Shift) int {
	if s == ShiftMorning {
		return c.MorningCapacity
	}
	return c.AfternoonCapacity
}

// SlotAvailability is the read model of one slot.
type SlotAvailability struct {
	TimeSlot      TimeSlot
	Limit         int
	Current       int
	Available     bool
	OccupancyRate float64
	Reason        UnavailableReason
	Message       string
}

// DaySlotStats is the read model of a whole day.
type DaySlotStats struct {
	Date           string
	DateBlocked    bool
	Slots          []SlotAvailability
	TotalAvailable int
	TotalBooked    int
	BookedByShift  map[Shift]int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
