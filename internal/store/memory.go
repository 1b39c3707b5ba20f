package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"telemed-server/internal/models"
)

// ErrDuplicate is returned by MemoryStore when a unique column would collide.
var ErrDuplicate = errors.New("duplicate key")

type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) remove(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// all returns rows in insertion order.
func (t *table[T]) all(keep func(T) bool) []T {
	out := make([]T, 0)
	for _, id := range t.order {
		row := t.rows[id]
		if keep == nil || keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func (t *table[T]) find(keep func(T) bool) (T, bool) {
	for _, id := range t.order {
		if row := t.rows[id]; keep(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{rows: make(map[string]T, len(t.rows)), order: append([]string(nil), t.order...)}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}

type memData struct {
	users        *table[models.User]
	doctors      *table[models.Doctor]
	patients     *table[models.Patient]
	tokens       *table[models.RefreshToken]
	appointments *table[models.Appointment]
	reports      *table[models.MedicalReport]
	payments     *table[models.Payment]
	messages     *table[models.ChatMessage]
}

func (d *memData) clone() *memData {
	return &memData{
		users:        d.users.clone(),
		doctors:      d.doctors.clone(),
		patients:     d.patients.clone(),
		tokens:       d.tokens.clone(),
		appointments: d.appointments.clone(),
		reports:      d.reports.clone(),
		payments:     d.payments.clone(),
		messages:     d.messages.clone(),
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)

// MemoryStore keeps everything in process memory. It backs STORE_DRIVER=memory and the tests.
// Transactions hold the store lock for their whole duration, so they are serializable.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
	now  func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:        newTable[models.User](),
			doctors:      newTable[models.Doctor](),
			patients:     newTable[models.Patient](),
			tokens:       newTable[models.RefreshToken](),
			appointments: newTable[models.Appointment](),
			reports:      newTable[models.MedicalReport](),
			payments:     newTable[models.Payment](),
			messages:     newTable[models.ChatMessage](),
		},
		now: time.Now,
	}
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{mu: s.mu, data: s.data.clone(), inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) stamp(base *models.BaseModel) {
	base.EnsureID()
	now := s.now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	if _, dup := s.data.users.find(func(u models.User) bool { return u.Email == user.Email }); dup {
		return ErrDuplicate
	}
	s.stamp(&user.BaseModel)
	s.data.users.put(user.ID, *user)
	return nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	if other, dup := s.data.users.find(func(u models.User) bool { return u.Email == user.Email }); dup && other.ID != user.ID {
		return ErrDuplicate
	}
	s.stamp(&user.BaseModel)
	s.data.users.put(user.ID, *user)
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	defer s.lock()()
	s.data.users.remove(id)
	return nil
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users.find(func(u models.User) bool { return u.Email == email })
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func matchUser(filter UserFilter) func(models.User) bool {
	return func(u models.User) bool {
		return (filter.Role == "" || u.Role == filter.Role) && (filter.Status == "" || u.Status == filter.Status)
	}
}

func (s *MemoryStore) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	defer s.lock()()
	return s.data.users.all(matchUser(filter)), nil
}

func (s *MemoryStore) CountUsers(ctx context.Context, filter UserFilter) (int64, error) {
	defer s.lock()()
	return int64(len(s.data.users.all(matchUser(filter)))), nil
}

// Profiles

func (s *MemoryStore) SaveDoctor(ctx context.Context, doctor *models.Doctor) error {
	defer s.lock()()
	if other, dup := s.data.doctors.find(func(d models.Doctor) bool { return d.UserID == doctor.UserID }); dup && other.ID != doctor.ID {
		return ErrDuplicate
	}
	s.stamp(&doctor.BaseModel)
	s.data.doctors.put(doctor.ID, *doctor)
	return nil
}

func (s *MemoryStore) DeleteDoctorByUserID(ctx context.Context, userID string) error {
	defer s.lock()()
	if d, ok := s.data.doctors.find(func(d models.Doctor) bool { return d.UserID == userID }); ok {
		s.data.doctors.remove(d.ID)
	}
	return nil
}

func (s *MemoryStore) FindDoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	defer s.lock()()
	d, ok := s.data.doctors.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) FindDoctorByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	defer s.lock()()
	d, ok := s.data.doctors.find(func(d models.Doctor) bool { return d.UserID == userID })
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListDoctorsByUserStatus(ctx context.Context, status models.UserStatus) ([]models.DoctorListing, error) {
	defer s.lock()()
	listings := make([]models.DoctorListing, 0)
	for _, d := range s.data.doctors.all(nil) {
		u, ok := s.data.users.get(d.UserID)
		if !ok || u.Status != status {
			continue
		}
		listings = append(listings, models.DoctorListing{Doctor: d, Name: u.DisplayName(), Email: u.Email})
	}
	return listings, nil
}

func (s *MemoryStore) SavePatient(ctx context.Context, patient *models.Patient) error {
	defer s.lock()()
	if other, dup := s.data.patients.find(func(p models.Patient) bool { return p.UserID == patient.UserID }); dup && other.ID != patient.ID {
		return ErrDuplicate
	}
	s.stamp(&patient.BaseModel)
	s.data.patients.put(patient.ID, *patient)
	return nil
}

func (s *MemoryStore) FindPatientByID(ctx context.Context, id string) (*models.Patient, error) {
	defer s.lock()()
	p, ok := s.data.patients.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindPatientByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	defer s.lock()()
	p, ok := s.data.patients.find(func(p models.Patient) bool { return p.UserID == userID })
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Refresh tokens

func (s *MemoryStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	defer s.lock()()
	s.stamp(&token.BaseModel)
	s.data.tokens.put(token.ID, *token)
	return nil
}

func (s *MemoryStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	defer s.lock()()
	t, ok := s.data.tokens.find(func(t models.RefreshToken) bool { return t.Token == token })
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// Appointments

func (s *MemoryStore) CreateAppointment(ctx context.Context, appointment *models.Appointment) error {
	defer s.lock()()
	s.stamp(&appointment.BaseModel)
	s.data.appointments.put(appointment.ID, *appointment)
	return nil
}

func (s *MemoryStore) SaveAppointment(ctx context.Context, appointment *models.Appointment) error {
	defer s.lock()()
	s.stamp(&appointment.BaseModel)
	s.data.appointments.put(appointment.ID, *appointment)
	return nil
}

func (s *MemoryStore) DeleteAppointment(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	return s.data.appointments.remove(id), nil
}

func (s *MemoryStore) FindAppointmentByID(ctx context.Context, id string) (*models.Appointment, error) {
	defer s.lock()()
	a, ok := s.data.appointments.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) FindAppointmentsBySlot(ctx context.Context, doctorID, date, clock string) ([]models.Appointment, error) {
	defer s.lock()()
	return s.data.appointments.all(func(a models.Appointment) bool {
		return a.DoctorID == doctorID && a.Date == date && a.Time == clock
	}), nil
}

func (s *MemoryStore) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	defer s.lock()()
	out := s.data.appointments.all(func(a models.Appointment) bool {
		return (filter.DoctorID == "" || a.DoctorID == filter.DoctorID) &&
			(filter.PatientID == "" || a.PatientID == filter.PatientID)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

// Medical reports

func (s *MemoryStore) SaveMedicalReport(ctx context.Context, report *models.MedicalReport) error {
	defer s.lock()()
	if other, dup := s.data.reports.find(func(r models.MedicalReport) bool { return r.AppointmentID == report.AppointmentID }); dup && other.ID != report.ID {
		return ErrDuplicate
	}
	s.stamp(&report.BaseModel)
	s.data.reports.put(report.ID, *report)
	return nil
}

func (s *MemoryStore) FindMedicalReportByAppointmentID(ctx context.Context, appointmentID string) (*models.MedicalReport, error) {
	defer s.lock()()
	r, ok := s.data.reports.find(func(r models.MedicalReport) bool { return r.AppointmentID == appointmentID })
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) ListMedicalReportsByPatient(ctx context.Context, patientID string) ([]models.MedicalReport, error) {
	defer s.lock()()
	out := s.data.reports.all(func(r models.MedicalReport) bool { return r.PatientID == patientID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	return out, nil
}

// Payments

func (s *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	defer s.lock()()
	if _, dup := s.data.payments.find(func(p models.Payment) bool { return p.GatewayOrderID == payment.GatewayOrderID }); dup {
		return ErrDuplicate
	}
	s.stamp(&payment.BaseModel)
	s.data.payments.put(payment.ID, *payment)
	return nil
}

func (s *MemoryStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	defer s.lock()()
	s.stamp(&payment.BaseModel)
	s.data.payments.put(payment.ID, *payment)
	return nil
}

func (s *MemoryStore) FindPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	defer s.lock()()
	p, ok := s.data.payments.find(func(p models.Payment) bool { return p.GatewayOrderID == orderID })
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPendingPaymentsBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	defer s.lock()()
	return s.data.payments.all(func(p models.Payment) bool {
		return p.Status == models.PaymentPending && p.CreatedAt.Before(cutoff)
	}), nil
}

// Messages

func (s *MemoryStore) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	defer s.lock()()
	s.stamp(&message.BaseModel)
	s.data.messages.put(message.ID, *message)
	return nil
}

func (s *MemoryStore) SaveMessages(ctx context.Context, messages []models.ChatMessage) error {
	defer s.lock()()
	for i := range messages {
		s.stamp(&messages[i].BaseModel)
		s.data.messages.put(messages[i].ID, messages[i])
	}
	return nil
}

func (s *MemoryStore) DeleteMessage(ctx context.Context, id string) error {
	defer s.lock()()
	s.data.messages.remove(id)
	return nil
}

func (s *MemoryStore) messagesWhere(keep func(models.ChatMessage) bool) []models.ChatMessage {
	out := s.data.messages.all(keep)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *MemoryStore) FindMessages(ctx context.Context, senderID, receiverID string) ([]models.ChatMessage, error) {
	defer s.lock()()
	return s.messagesWhere(func(m models.ChatMessage) bool {
		return m.SenderID == senderID && m.ReceiverID == receiverID
	}), nil
}

func (s *MemoryStore) FindMessagesBySender(ctx context.Context, senderID string) ([]models.ChatMessage, error) {
	defer s.lock()()
	return s.messagesWhere(func(m models.ChatMessage) bool { return m.SenderID == senderID }), nil
}

func (s *MemoryStore) FindMessagesByReceiver(ctx context.Context, receiverID string) ([]models.ChatMessage, error) {
	defer s.lock()()
	return s.messagesWhere(func(m models.ChatMessage) bool { return m.ReceiverID == receiverID }), nil
}
