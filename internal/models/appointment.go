package models

import (
	"fmt"
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCompleted AppointmentStatus = "completed"
)

// ParseAppointmentStatus accepts any casing of the four known statuses.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// BlocksSlot reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) BlocksSlot() bool {
	return s == StatusPending || s == StatusConfirmed
}

const (
	SlotDateLayout = "2006-01-02"
	SlotTimeLayout = "15:04"
)

// NormalizeSlot validates a date/time pair and returns it in the canonical
// YYYY-MM-DD / HH:MM form used for slot lookups.
func NormalizeSlot(date, clock string) (string, string, error) {
	d, err := time.Parse(SlotDateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	clock = strings.TrimSpace(clock)
	t, err := time.Parse(SlotTimeLayout, clock)
	if err != nil {
		t, err = time.Parse("15:04:05", clock)
		if err != nil {
			return "", "", fmt.Errorf("invalid time %q, expected HH:MM", clock)
		}
	}
	return d.Format(SlotDateLayout), t.Format(SlotTimeLayout), nil
}

// Appointment represents a scheduled consultation in a doctor's slot.
type Appointment struct {
	BaseModel
	DoctorID          string            `gorm:"size:36;index:idx_slot,priority:1" json:"doctorId"`
	PatientID         string            `gorm:"size:36;index" json:"patientId"`
	Date              string            `gorm:"size:10;index:idx_slot,priority:2" json:"date"`
	Time              string            `gorm:"size:5;index:idx_slot,priority:3" json:"time"`
	Reason            string            `gorm:"size:255" json:"reason"`
	SpecialNotes      string            `gorm:"type:text" json:"specialNotes"`
	InsuranceProvider string            `gorm:"size:255" json:"insuranceProvider,omitempty"`
	InsuranceNumber   string            `gorm:"size:100" json:"insuranceNumber,omitempty"`
	Status            AppointmentStatus `gorm:"size:20;default:'pending'" json:"status"`
}

// MedicalReport is the doctor's write-up of a visit. At most one per appointment.
type MedicalReport struct {
	BaseModel
	AppointmentID      string    `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	PatientID          string    `gorm:"size:36;index" json:"patientId"`
	DoctorID           string    `gorm:"size:36;index" json:"doctorId"`
	Diagnosis          string    `gorm:"type:text" json:"diagnosis"`
	PrescribedMedicine string    `gorm:"type:text" json:"prescribedMedicine"`
	DoctorNotes        string    `gorm:"type:text" json:"doctorNotes"`
	ReportDate         time.Time `json:"reportDate"`
}
