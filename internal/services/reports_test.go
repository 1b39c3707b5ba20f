package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/models"
	"telemed-server/internal/store"
)

func TestReportAccess(t *testing.T) {
	st := store.NewMemoryStore()
	fx := seed(t, st, 500)
	svc := NewReportService(st, nopLogger())
	ctx := context.Background()

	other := seedUser(t, st, "other@example.com", models.RoleDoctor, models.UserStatusActive)
	require.NoError(t, st.SaveDoctor(ctx, &models.Doctor{UserID: other.ID}))
	stranger := seedUser(t, st, "stranger@example.com", models.RolePatient, models.UserStatusActive)
	require.NoError(t, st.SavePatient(ctx, &models.Patient{UserID: stranger.ID}))
	admin := seedUser(t, st, "admin@example.com", models.RoleAdmin, models.UserStatusActive)

	appointment := &models.Appointment{DoctorID: fx.doctor.ID, PatientID: fx.patient.ID, Date: "2025-03-01", Time: "10:00", Status: models.StatusCompleted}
	require.NoError(t, st.CreateAppointment(ctx, appointment))

	_, err := svc.Upsert(ctx, other.ID, ReportInput{AppointmentID: appointment.ID, Diagnosis: "flu"})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	first, err := svc.Upsert(ctx, fx.doctorUser.ID, ReportInput{AppointmentID: appointment.ID, Diagnosis: "flu"})
	require.NoError(t, err)
	assert.False(t, first.ReportDate.IsZero())
	second, err := svc.Upsert(ctx, fx.doctorUser.ID, ReportInput{AppointmentID: appointment.ID, Diagnosis: "cold"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	allowed := []Requester{
		{UserID: fx.doctorUser.ID, Role: models.RoleDoctor},
		{UserID: fx.patientUser.ID, Role: models.RolePatient},
		{UserID: admin.ID, Role: models.RoleAdmin},
	}
	for _, who := range allowed {
		report, err := svc.ForAppointment(ctx, who, appointment.ID)
		require.NoError(t, err)
		assert.Equal(t, "cold", report.Diagnosis)

		reports, err := svc.ForPatient(ctx, who, fx.patient.ID)
		require.NoError(t, err)
		assert.Len(t, reports, 1)
	}

	denied := []Requester{
		{UserID: other.ID, Role: models.RoleDoctor},
		{UserID: stranger.ID, Role: models.RolePatient},
	}
	for _, who := range denied {
		_, err := svc.ForAppointment(ctx, who, appointment.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
		_, err = svc.ForPatient(ctx, who, fx.patient.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	}

	_, err = svc.ForAppointment(ctx, allowed[0], "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
