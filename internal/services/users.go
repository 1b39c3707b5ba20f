package services

import (
	"context"
	"io"

	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/models"
	"telemed-server/internal/storage"
	"telemed-server/internal/store"
)

// DashboardStats backs the admin landing page.
type DashboardStats struct {
	TotalUsers     int64 `json:"totalUsers"`
	PendingDoctors int64 `json:"pendingDoctors"`
	ActiveDoctors  int64 `json:"activeDoctors"`
	ActivePatients int64 `json:"activePatients"`
	BlockedUsers   int64 `json:"blockedUsers"`
}

// Upload is a file being attached to an account.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UserService owns accounts, profiles and the doctor directory.
type UserService struct {
	store   store.Store
	objects storage.ObjectStore
	log     *zap.Logger
}

// NewUserService accepts a nil ObjectStore, in which case uploads are refused.
func NewUserService(st store.Store, objects storage.ObjectStore, logger *zap.Logger) *UserService {
	return &UserService{store: st, objects: objects, log: logger}
}

// UploadsEnabled reports whether an object store is configured.
func (s *UserService) UploadsEnabled() bool {
	return s.objects != nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "User not found")
	}
	return user, nil
}

// UpdateName changes the non-empty name fields.
func (s *UserService) UpdateName(ctx context.Context, id, firstName, lastName string) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if firstName != "" {
		user.FirstName = firstName
	}
	if lastName != "" {
		user.LastName = lastName
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, apperrors.Internal(err, "Failed to update profile")
	}
	return user, nil
}

func (s *UserService) put(ctx context.Context, prefix, ownerID string, up Upload) (string, error) {
	if s.objects == nil {
		return "", apperrors.ExternalService(nil, "File uploads are not configured")
	}
	key, err := s.objects.Put(ctx, storage.ObjectKey(prefix, ownerID, up.Filename), up.Body, up.Size, up.ContentType)
	if err != nil {
		s.log.Error("UserService.put upload failed", zap.String("ownerId", ownerID), zap.Error(err))
		return "", apperrors.ExternalService(err, "Failed to store file")
	}
	return key, nil
}

func (s *UserService) SetAvatar(ctx context.Context, userID string, up Upload) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := s.put(ctx, "avatars", userID, up)
	if err != nil {
		return nil, err
	}
	user.ProfileImage = key
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, apperrors.Internal(err, "Failed to update profile image")
	}
	return user, nil
}

// Doctors

func (s *UserService) DoctorProfile(ctx context.Context, userID string) (*models.Doctor, error) {
	doctor, err := s.store.FindDoctorByUserID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "Doctor profile not found")
	}
	return doctor, nil
}

// UpsertDoctorProfile creates or replaces the caller's profile, keeping its id and licence proof.
func (s *UserService) UpsertDoctorProfile(ctx context.Context, userID string, in models.Doctor) (*models.Doctor, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleDoctor {
		return nil, apperrors.Forbidden("Only doctors have a doctor profile")
	}
	if in.CheckUpFee < 0 {
		return nil, apperrors.Validation("Check-up fee cannot be negative")
	}

	in.BaseModel = models.BaseModel{}
	in.UserID = userID
	if existing, err := s.store.FindDoctorByUserID(ctx, userID); err == nil {
		in.BaseModel = existing.BaseModel
		in.LicenseProofPath = existing.LicenseProofPath
	}
	if err := s.store.SaveDoctor(ctx, &in); err != nil {
		return nil, apperrors.Internal(err, "Failed to save doctor profile")
	}
	return &in, nil
}

func (s *UserService) SetLicenseProof(ctx context.Context, userID string, up Upload) (*models.Doctor, error) {
	doctor, err := s.DoctorProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := s.put(ctx, "licenses", userID, up)
	if err != nil {
		return nil, err
	}
	doctor.LicenseProofPath = key
	if err := s.store.SaveDoctor(ctx, doctor); err != nil {
		return nil, apperrors.Internal(err, "Failed to save licence proof")
	}
	return doctor, nil
}

// ListDoctors is the public directory: only doctors whose account is active.
func (s *UserService) ListDoctors(ctx context.Context) ([]models.DoctorListing, error) {
	listings, err := s.store.ListDoctorsByUserStatus(ctx, models.UserStatusActive)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch doctors")
	}
	return listings, nil
}

func (s *UserService) GetDoctor(ctx context.Context, id string) (*models.DoctorListing, error) {
	doctor, err := s.store.FindDoctorByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Doctor not found")
	}
	listing := &models.DoctorListing{Doctor: *doctor}
	if user, err := s.store.FindUserByID(ctx, doctor.UserID); err == nil {
		listing.Name = user.DisplayName()
		listing.Email = user.Email
	}
	return listing, nil
}

// Patients

func (s *UserService) PatientProfile(ctx context.Context, userID string) (*models.Patient, error) {
	patient, err := s.store.FindPatientByUserID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "Patient profile not found")
	}
	return patient, nil
}

func (s *UserService) UpsertPatientProfile(ctx context.Context, userID string, in models.Patient) (*models.Patient, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RolePatient {
		return nil, apperrors.Forbidden("Only patients have a patient profile")
	}
	if in.Age < 0 {
		return nil, apperrors.Validation("Age cannot be negative")
	}

	in.BaseModel = models.BaseModel{}
	in.UserID = userID
	if in.Name == "" {
		in.Name = user.DisplayName()
	}
	if existing, err := s.store.FindPatientByUserID(ctx, userID); err == nil {
		in.BaseModel = existing.BaseModel
	}
	if err := s.store.SavePatient(ctx, &in); err != nil {
		return nil, apperrors.Internal(err, "Failed to save patient profile")
	}
	return &in, nil
}

// Admin

func (s *UserService) PendingDoctors(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, store.UserFilter{Role: models.RoleDoctor, Status: models.UserStatusPending})
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch pending doctors")
	}
	return users, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, store.UserFilter{})
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch users")
	}
	return users, nil
}

func (s *UserService) pendingDoctor(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "Doctor not found")
	}
	if user.Role != models.RoleDoctor {
		return nil, apperrors.Validation("User is not a doctor")
	}
	if user.Status != models.UserStatusPending {
		return nil, apperrors.Validation("Doctor is not in pending status")
	}
	return user, nil
}

// ApproveDoctor activates a pending doctor account.
func (s *UserService) ApproveDoctor(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.pendingDoctor(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Status = models.UserStatusActive
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, apperrors.Internal(err, "Failed to approve doctor")
	}
	s.log.Info("UserService.ApproveDoctor approved", zap.String("userId", userID))
	return user, nil
}

// RejectDoctor deletes a pending doctor account together with its profile.
func (s *UserService) RejectDoctor(ctx context.Context, userID, reason string) (*models.User, error) {
	user, err := s.pendingDoctor(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteDoctorByUserID(ctx, userID); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, userID)
	})
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to reject doctor")
	}
	s.log.Info("UserService.RejectDoctor rejected",
		zap.String("userId", userID),
		zap.String("reason", reason),
	)
	return user, nil
}

// ToggleStatus flips an account between active and blocked. Admins cannot be toggled.
func (s *UserService) ToggleStatus(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return nil, apperrors.Forbidden("Cannot modify admin user status")
	}
	if user.Status == models.UserStatusActive {
		user.Status = models.UserStatusBlocked
	} else {
		user.Status = models.UserStatusActive
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, apperrors.Internal(err, "Failed to update user status")
	}
	return user, nil
}

func (s *UserService) Stats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	counts := []struct {
		filter store.UserFilter
		dst    *int64
	}{
		{store.UserFilter{}, &stats.TotalUsers},
		{store.UserFilter{Role: models.RoleDoctor, Status: models.UserStatusPending}, &stats.PendingDoctors},
		{store.UserFilter{Role: models.RoleDoctor, Status: models.UserStatusActive}, &stats.ActiveDoctors},
		{store.UserFilter{Role: models.RolePatient, Status: models.UserStatusActive}, &stats.ActivePatients},
		{store.UserFilter{Status: models.UserStatusBlocked}, &stats.BlockedUsers},
	}
	for _, c := range counts {
		n, err := s.store.CountUsers(ctx, c.filter)
		if err != nil {
			return nil, apperrors.Internal(err, "Failed to fetch dashboard stats")
		}
		*c.dst = n
	}
	return &stats, nil
}
