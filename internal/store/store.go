// Package store is the directory store: persistence for accounts, profiles,
// appointments, payments and chat messages.
package store

import (
	"context"
	"errors"
	"time"

	"telemed-server/internal/models"
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// UserFilter narrows user listings. Zero fields match everything.
type UserFilter struct {
	Role   models.Role
	Status models.UserStatus
}

// AppointmentFilter narrows appointment listings. Zero fields match everything.
type AppointmentFilter struct {
	DoctorID  string
	PatientID string
}

// Store is implemented by GormStore and MemoryStore.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, filter UserFilter) (int64, error)

	SaveDoctor(ctx context.Context, doctor *models.Doctor) error
	DeleteDoctorByUserID(ctx context.Context, userID string) error
	FindDoctorByID(ctx context.Context, id string) (*models.Doctor, error)
	FindDoctorByUserID(ctx context.Context, userID string) (*models.Doctor, error)
	ListDoctorsByUserStatus(ctx context.Context, status models.UserStatus) ([]models.DoctorListing, error)

	SavePatient(ctx context.Context, patient *models.Patient) error
	FindPatientByID(ctx context.Context, id string) (*models.Patient, error)
	FindPatientByUserID(ctx context.Context, userID string) (*models.Patient, error)

	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	CreateAppointment(ctx context.Context, appointment *models.Appointment) error
	SaveAppointment(ctx context.Context, appointment *models.Appointment) error
	DeleteAppointment(ctx context.Context, id string) (bool, error)
	FindAppointmentByID(ctx context.Context, id string) (*models.Appointment, error)
	FindAppointmentsBySlot(ctx context.Context, doctorID, date, clock string) ([]models.Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)

	SaveMedicalReport(ctx context.Context, report *models.MedicalReport) error
	FindMedicalReportByAppointmentID(ctx context.Context, appointmentID string) (*models.MedicalReport, error)
	ListMedicalReportsByPatient(ctx context.Context, patientID string) ([]models.MedicalReport, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	SavePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ListPendingPaymentsBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error)

	CreateMessage(ctx context.Context, message *models.ChatMessage) error
	SaveMessages(ctx context.Context, messages []models.ChatMessage) error
	DeleteMessage(ctx context.Context, id string) error
	FindMessages(ctx context.Context, senderID, receiverID string) ([]models.ChatMessage, error)
	FindMessagesBySender(ctx context.Context, senderID string) ([]models.ChatMessage, error)
	FindMessagesByReceiver(ctx context.Context, receiverID string) ([]models.ChatMessage, error)

	// Transaction runs fn against a Store bound to a single transaction.
	// Everything fn writes is committed if it returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
