package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telemed-server/internal/models"
)

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func first[T any](q *gorm.DB, query string, args ...any) (*T, error) {
	var out T
	if err := q.Where(query, args...).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.conn(ctx).Create(user).Error
}

func (s *GormStore) SaveUser(ctx context.Context, user *models.User) error {
	return s.conn(ctx).Save(user).Error
}

func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	return s.conn(ctx).Delete(&models.User{}, "id = ?", id).Error
}

func (s *GormStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return first[models.User](s.conn(ctx), "id = ?", id)
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](s.conn(ctx), "email = ?", email)
}

func (s *GormStore) userQuery(ctx context.Context, filter UserFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.User{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

func (s *GormStore) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	var users []models.User
	err := s.userQuery(ctx, filter).Order("created_at asc").Find(&users).Error
	return users, err
}

func (s *GormStore) CountUsers(ctx context.Context, filter UserFilter) (int64, error) {
	var count int64
	err := s.userQuery(ctx, filter).Count(&count).Error
	return count, err
}

// Profiles

func (s *GormStore) SaveDoctor(ctx context.Context, doctor *models.Doctor) error {
	return s.conn(ctx).Save(doctor).Error
}

func (s *GormStore) DeleteDoctorByUserID(ctx context.Context, userID string) error {
	return s.conn(ctx).Delete(&models.Doctor{}, "user_id = ?", userID).Error
}

func (s *GormStore) FindDoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	return first[models.Doctor](s.conn(ctx), "id = ?", id)
}

func (s *GormStore) FindDoctorByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	return first[models.Doctor](s.conn(ctx), "user_id = ?", userID)
}

func (s *GormStore) ListDoctorsByUserStatus(ctx context.Context, status models.UserStatus) ([]models.DoctorListing, error) {
	var listings []models.DoctorListing
	err := s.conn(ctx).Table("doctors").
		Select("doctors.*, CONCAT(users.first_name, ' ', users.last_name) AS name, users.email AS email").
		Joins("JOIN users ON users.id = doctors.user_id").
		Where("users.status = ?", status).
		Order("doctors.created_at asc").
		Scan(&listings).Error
	return listings, err
}

func (s *GormStore) SavePatient(ctx context.Context, patient *models.Patient) error {
	return s.conn(ctx).Save(patient).Error
}

func (s *GormStore) FindPatientByID(ctx context.Context, id string) (*models.Patient, error) {
	return first[models.Patient](s.conn(ctx), "id = ?", id)
}

func (s *GormStore) FindPatientByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	return first[models.Patient](s.conn(ctx), "user_id = ?", userID)
}

// Refresh tokens

func (s *GormStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.conn(ctx).Save(token).Error
}

func (s *GormStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return first[models.RefreshToken](s.conn(ctx), "token = ?", token)
}

// Appointments

func (s *GormStore) CreateAppointment(ctx context.Context, appointment *models.Appointment) error {
	return s.conn(ctx).Create(appointment).Error
}

func (s *GormStore) SaveAppointment(ctx context.Context, appointment *models.Appointment) error {
	return s.conn(ctx).Save(appointment).Error
}

func (s *GormStore) DeleteAppointment(ctx context.Context, id string) (bool, error) {
	res := s.conn(ctx).Delete(&models.Appointment{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) FindAppointmentByID(ctx context.Context, id string) (*models.Appointment, error) {
	return first[models.Appointment](s.conn(ctx), "id = ?", id)
}

func (s *GormStore) FindAppointmentsBySlot(ctx context.Context, doctorID, date, clock string) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := s.conn(ctx).
		Where("doctor_id = ? AND date = ? AND time = ?", doctorID, date, clock).
		Find(&appointments).Error
	return appointments, err
}

func (s *GormStore) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	q := s.conn(ctx).Order("date asc, time asc")
	if filter.DoctorID != "" {
		q = q.Where("doctor_id = ?", filter.DoctorID)
	}
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	var appointments []models.Appointment
	err := q.Find(&appointments).Error
	return appointments, err
}

// Medical reports

func (s *GormStore) SaveMedicalReport(ctx context.Context, report *models.MedicalReport) error {
	return s.conn(ctx).Save(report).Error
}

func (s *GormStore) FindMedicalReportByAppointmentID(ctx context.Context, appointmentID string) (*models.MedicalReport, error) {
	return first[models.MedicalReport](s.conn(ctx), "appointment_id = ?", appointmentID)
}

func (s *GormStore) ListMedicalReportsByPatient(ctx context.Context, patientID string) ([]models.MedicalReport, error) {
	var reports []models.MedicalReport
	err := s.conn(ctx).Where("patient_id = ?", patientID).Order("report_date desc").Find(&reports).Error
	return reports, err
}

// Payments

func (s *GormStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return s.conn(ctx).Create(payment).Error
}

func (s *GormStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.conn(ctx).Save(payment).Error
}

// FindPaymentByOrderID takes a row lock, which only lasts past the statement inside Transaction.
func (s *GormStore) FindPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	q := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return first[models.Payment](q, "gateway_order_id = ?", orderID)
}

func (s *GormStore) ListPendingPaymentsBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.conn(ctx).
		Where("status = ? AND created_at < ?", models.PaymentPending, cutoff).
		Find(&payments).Error
	return payments, err
}

// Messages

func (s *GormStore) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	return s.conn(ctx).Create(message).Error
}

func (s *GormStore) SaveMessages(ctx context.Context, messages []models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return s.conn(ctx).Save(&messages).Error
}

func (s *GormStore) DeleteMessage(ctx context.Context, id string) error {
	return s.conn(ctx).Delete(&models.ChatMessage{}, "id = ?", id).Error
}

func (s *GormStore) FindMessages(ctx context.Context, senderID, receiverID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.conn(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Order("timestamp asc").
		Find(&messages).Error
	return messages, err
}

func (s *GormStore) FindMessagesBySender(ctx context.Context, senderID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.conn(ctx).Where("sender_id = ?", senderID).Order("timestamp asc").Find(&messages).Error
	return messages, err
}

func (s *GormStore) FindMessagesByReceiver(ctx context.Context, receiverID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.conn(ctx).Where("receiver_id = ?", receiverID).Order("timestamp asc").Find(&messages).Error
	return messages, err
}
