package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telemed-server/internal/gateway"
	"telemed-server/internal/models"
	"telemed-server/internal/realtime"
	"telemed-server/internal/store"
)

const testGatewaySecret = "test_secret"

type published struct {
	channel string
	event   realtime.Event
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(channel string, event realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{channel, event})
}

func (r *recorder) of(eventType realtime.EventType) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type mockGateway struct {
	mock.Mock
	mu     sync.Mutex
	orders int
}

func (m *mockGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	args := m.Called(ctx, req)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.orders++
	id := fmt.Sprintf("order_%d", m.orders)
	m.mu.Unlock()
	return &gateway.Order{ID: id, Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (m *mockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(testGatewaySecret, orderID, paymentID, signature)
}

func (m *mockGateway) KeyID() string {
	return "rzp_test_key"
}

// seeded holds one active doctor and one patient with their profiles.
type seeded struct {
	doctorUser  *models.User
	doctor      *models.Doctor
	patientUser *models.User
	patient     *models.Patient
}

func seedUser(t *testing.T, st store.Store, email string, role models.Role, status models.UserStatus) *models.User {
	t.Helper()
	user := &models.User{Email: email, FirstName: "Test", LastName: string(role), Role: role, Status: status}
	require.NoError(t, user.SetPassword("secret123"))
	require.NoError(t, st.CreateUser(context.Background(), user))
	return user
}

func seed(t *testing.T, st store.Store, fee int) seeded {
	t.Helper()
	ctx := context.Background()

	doctorUser := seedUser(t, st, "doc@example.com", models.RoleDoctor, models.UserStatusActive)
	doctor := &models.Doctor{UserID: doctorUser.ID, Specialization: "Cardiology", CheckUpFee: fee, City: "Pune"}
	require.NoError(t, st.SaveDoctor(ctx, doctor))

	patientUser := seedUser(t, st, "pat@example.com", models.RolePatient, models.UserStatusActive)
	patient := &models.Patient{UserID: patientUser.ID, Name: "Test Patient", Age: 30}
	require.NoError(t, st.SavePatient(ctx, patient))

	return seeded{doctorUser: doctorUser, doctor: doctor, patientUser: patientUser, patient: patient}
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
