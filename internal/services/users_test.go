package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/models"
	"telemed-server/internal/store"
)

type fakeObjects struct {
	keys []string
	err  error
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return key, nil
}

func TestApproveDoctor(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewUserService(st, nil, nopLogger())
	ctx := context.Background()
	doc := seedUser(t, st, "doc@example.com", models.RoleDoctor, models.UserStatusPending)
	pat := seedUser(t, st, "pat@example.com", models.RolePatient, models.UserStatusActive)

	pending, err := svc.PendingDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, doc.ID, pending[0].ID)

	approved, err := svc.ApproveDoctor(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, approved.Status)

	_, err = svc.ApproveDoctor(ctx, doc.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	_, err = svc.ApproveDoctor(ctx, pat.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	_, err = svc.ApproveDoctor(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestRejectDoctorRemovesAccount(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewUserService(st, nil, nopLogger())
	ctx := context.Background()
	doc := seedUser(t, st, "doc@example.com", models.RoleDoctor, models.UserStatusPending)
	require.NoError(t, st.SaveDoctor(ctx, &models.Doctor{UserID: doc.ID, CheckUpFee: 300}))

	_, err := svc.RejectDoctor(ctx, doc.ID, "licence unreadable")
	require.NoError(t, err)

	_, err = st.FindUserByID(ctx, doc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.FindDoctorByUserID(ctx, doc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleStatus(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewUserService(st, nil, nopLogger())
	ctx := context.Background()
	pat := seedUser(t, st, "pat@example.com", models.RolePatient, models.UserStatusActive)
	admin := seedUser(t, st, "admin@example.com", models.RoleAdmin, models.UserStatusActive)

	blocked, err := svc.ToggleStatus(ctx, pat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusBlocked, blocked.Status)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.BlockedUsers)
	assert.Zero(t, stats.ActivePatients)

	active, err := svc.ToggleStatus(ctx, pat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, active.Status)

	_, err = svc.ToggleStatus(ctx, admin.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestListDoctorsOnlyActive(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewUserService(st, nil, nopLogger())
	ctx := context.Background()
	active := seedUser(t, st, "a@example.com", models.RoleDoctor, models.UserStatusActive)
	pending := seedUser(t, st, "p@example.com", models.RoleDoctor, models.UserStatusPending)

	_, err := svc.UpsertDoctorProfile(ctx, active.ID, models.Doctor{Specialization: "ENT", CheckUpFee: 400})
	require.NoError(t, err)
	_, err = svc.UpsertDoctorProfile(ctx, pending.ID, models.Doctor{Specialization: "Skin", CheckUpFee: 200})
	require.NoError(t, err)

	listings, err := svc.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, active.ID, listings[0].UserID)
	assert.Equal(t, "a@example.com", listings[0].Email)

	one, err := svc.GetDoctor(ctx, listings[0].ID)
	require.NoError(t, err)
	assert.Equal(t, active.DisplayName(), one.Name)
}

func TestUpsertProfiles(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewUserService(st, nil, nopLogger())
	ctx := context.Background()
	doc := seedUser(t, st, "doc@example.com", models.RoleDoctor, models.UserStatusActive)
	pat := seedUser(t, st, "pat@example.com", models.RolePatient, models.UserStatusActive)

	first, err := svc.UpsertDoctorProfile(ctx, doc.ID, models.Doctor{CheckUpFee: 100})
	require.NoError(t, err)
	second, err := svc.UpsertDoctorProfile(ctx, doc.ID, models.Doctor{CheckUpFee: 250, City: "Delhi"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := svc.DoctorProfile(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 250, stored.CheckUpFee)

	_, err = svc.UpsertDoctorProfile(ctx, doc.ID, models.Doctor{CheckUpFee: -1})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	_, err = svc.UpsertDoctorProfile(ctx, pat.ID, models.Doctor{})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	patient, err := svc.UpsertPatientProfile(ctx, pat.ID, models.Patient{Age: 40})
	require.NoError(t, err)
	assert.Equal(t, pat.DisplayName(), patient.Name)
	_, err = svc.UpsertPatientProfile(ctx, doc.ID, models.Patient{})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = svc.PatientProfile(ctx, doc.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestUploads(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	doc := seedUser(t, st, "doc@example.com", models.RoleDoctor, models.UserStatusActive)
	upload := Upload{Filename: "licence.pdf", ContentType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF")}

	disabled := NewUserService(st, nil, nopLogger())
	assert.False(t, disabled.UploadsEnabled())
	_, err := disabled.SetAvatar(ctx, doc.ID, upload)
	assert.True(t, apperrors.Is(err, apperrors.KindExternalService))

	objects := &fakeObjects{}
	svc := NewUserService(st, objects, nopLogger())
	_, err = svc.SetLicenseProof(ctx, doc.ID, upload)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound), "no profile yet")

	_, err = svc.UpsertDoctorProfile(ctx, doc.ID, models.Doctor{CheckUpFee: 100})
	require.NoError(t, err)
	doctor, err := svc.SetLicenseProof(ctx, doc.ID, upload)
	require.NoError(t, err)
	require.Len(t, objects.keys, 1)
	assert.Equal(t, objects.keys[0], doctor.LicenseProofPath)

	// A later profile edit keeps the proof.
	edited, err := svc.UpsertDoctorProfile(ctx, doc.ID, models.Doctor{CheckUpFee: 120})
	require.NoError(t, err)
	assert.Equal(t, doctor.LicenseProofPath, edited.LicenseProofPath)

	objects.err = errors.New("bucket gone")
	_, err = svc.SetAvatar(ctx, doc.ID, upload)
	assert.True(t, apperrors.Is(err, apperrors.KindExternalService))
}
