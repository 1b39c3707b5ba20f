package models

import "time"

// PaymentStatus is the payment attempt state. Transitions only go forward.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment tracks one gateway order that gates the creation of an appointment.
type Payment struct {
	BaseModel
	GatewayOrderID   string        `gorm:"size:64;uniqueIndex;not null" json:"orderId"`
	GatewayPaymentID string        `gorm:"size:64" json:"paymentId,omitempty"`
	Signature        string        `gorm:"size:128" json:"-"`
	Amount           float64       `json:"amount"`
	Currency         string        `gorm:"size:8;default:'INR'" json:"currency"`
	Status           PaymentStatus `gorm:"size:16;default:'PENDING';index" json:"status"`
	PatientID        string        `gorm:"size:36;index" json:"patientId"`
	DoctorID         string        `gorm:"size:36;index" json:"doctorId"`
	AppointmentID    *string       `gorm:"size:36;uniqueIndex" json:"appointmentId,omitempty"`
	PaymentMethod    string        `gorm:"size:32" json:"paymentMethod,omitempty"`
	FailureReason    string        `gorm:"type:text" json:"failureReason,omitempty"`
	PaidAt           *time.Time    `json:"paidAt,omitempty"`
}
