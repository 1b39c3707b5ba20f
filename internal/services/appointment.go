// Package services holds the business workflows behind the HTTP handlers.
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/lock"
	"telemed-server/internal/metrics"
	"telemed-server/internal/models"
	"telemed-server/internal/store"
)

const slotLockTTL = 30 * time.Second

// BookingDetails describes the slot and visit a patient asks for.
type BookingDetails struct {
	Date              string `json:"date"`
	Time              string `json:"time"`
	Reason            string `json:"reason"`
	SpecialNotes      string `json:"specialNotes"`
	InsuranceProvider string `json:"insuranceProvider"`
	InsuranceNumber   string `json:"insuranceNumber"`
}

// BookingRequest names the doctor and patient profiles being booked.
type BookingRequest struct {
	DoctorID  string
	PatientID string
	BookingDetails
}

// AppointmentUpdate replaces only the fields that are set.
type AppointmentUpdate struct {
	Date              *string
	Time              *string
	Reason            *string
	SpecialNotes      *string
	InsuranceProvider *string
	InsuranceNumber   *string
	Status            *string
}

type AppointmentService struct {
	store   store.Store
	locker  lock.Locker
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewAppointmentService(st store.Store, locker lock.Locker, m *metrics.Metrics, logger *zap.Logger) *AppointmentService {
	return &AppointmentService{store: st, locker: locker, metrics: m, log: logger}
}

// BookDirect creates a pending appointment without checking that the slot is free.
func (s *AppointmentService) BookDirect(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	appointment, err := s.bookDirect(ctx, s.store, req)
	if err != nil {
		return nil, err
	}
	s.metrics.AppointmentBooked("direct")
	return appointment, nil
}

func (s *AppointmentService) bookDirect(ctx context.Context, st store.Store, req BookingRequest) (*models.Appointment, error) {
	date, clock, err := models.NormalizeSlot(req.Date, req.Time)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if _, err := st.FindDoctorByID(ctx, req.DoctorID); err != nil {
		return nil, lookupErr(err, "Doctor not found with ID: %s", req.DoctorID)
	}
	if _, err := st.FindPatientByID(ctx, req.PatientID); err != nil {
		return nil, lookupErr(err, "Patient not found with ID: %s", req.PatientID)
	}

	appointment := &models.Appointment{
		DoctorID:          req.DoctorID,
		PatientID:         req.PatientID,
		Date:              date,
		Time:              clock,
		Reason:            req.Reason,
		SpecialNotes:      req.SpecialNotes,
		InsuranceProvider: req.InsuranceProvider,
		InsuranceNumber:   req.InsuranceNumber,
		Status:            models.StatusPending,
	}
	if err := st.CreateAppointment(ctx, appointment); err != nil {
		return nil, apperrors.Internal(err, "Failed to create appointment")
	}

	s.log.Info("AppointmentService.bookDirect created appointment",
		zap.String("appointmentId", appointment.ID),
		zap.String("doctorId", appointment.DoctorID),
		zap.String("date", appointment.Date),
		zap.String("time", appointment.Time),
	)
	return appointment, nil
}

// CheckAvailability reports false iff a pending or confirmed appointment holds the slot.
func (s *AppointmentService) CheckAvailability(ctx context.Context, doctorID, date, clock string) (bool, error) {
	date, clock, err := models.NormalizeSlot(date, clock)
	if err != nil {
		return false, apperrors.Validation("%s", err.Error())
	}
	return s.checkAvailability(ctx, s.store, doctorID, date, clock)
}

func (s *AppointmentService) checkAvailability(ctx context.Context, st store.Store, doctorID, date, clock string) (bool, error) {
	existing, err := st.FindAppointmentsBySlot(ctx, doctorID, date, clock)
	if err != nil {
		return false, apperrors.Internal(err, "Failed to check availability")
	}
	for _, a := range existing {
		if a.Status.BlocksSlot() {
			return false, nil
		}
	}
	return true, nil
}

// withSlotLock runs fn while holding the slot lock. A held lock is reported as Conflict.
func (s *AppointmentService) withSlotLock(ctx context.Context, doctorID, date, clock string, fn func() error) error {
	key := lock.SlotKey(doctorID, date, clock)
	acquired, token, err := s.locker.TryLock(ctx, key, slotLockTTL)
	if err != nil {
		return apperrors.Internal(err, "Failed to lock appointment slot")
	}
	if !acquired {
		return apperrors.Conflict("Selected time slot is being booked, please try again")
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Error("AppointmentService.withSlotLock unlock failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}

// bookExclusive creates the appointment only if the slot is still free, inside tx.
func (s *AppointmentService) bookExclusive(ctx context.Context, tx store.Store, req BookingRequest) (*models.Appointment, error) {
	available, err := s.checkAvailability(ctx, tx, req.DoctorID, req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperrors.Conflict("Selected time slot is not available")
	}
	return s.bookDirect(ctx, tx, req)
}

// Book is the checked booking path: the slot is locked, re-checked and booked atomically.
func (s *AppointmentService) Book(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	date, clock, err := models.NormalizeSlot(req.Date, req.Time)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	req.Date, req.Time = date, clock

	var appointment *models.Appointment
	err = s.withSlotLock(ctx, req.DoctorID, date, clock, func() error {
		return s.store.Transaction(ctx, func(tx store.Store) error {
			var err error
			appointment, err = s.bookExclusive(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return nil, passThrough(err, "Failed to book appointment")
	}
	s.metrics.AppointmentBooked("direct")
	return appointment, nil
}

func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.store.FindAppointmentByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Appointment not found with id: %s", id)
	}
	return appointment, nil
}

// UpdateStatus overwrites the status. Any known status may follow any other.
func (s *AppointmentService) UpdateStatus(ctx context.Context, id, status string) (*models.Appointment, error) {
	parsed, err := models.ParseAppointmentStatus(status)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	appointment.Status = parsed
	if err := s.store.SaveAppointment(ctx, appointment); err != nil {
		return nil, apperrors.Internal(err, "Failed to update appointment status")
	}
	return appointment, nil
}

func (s *AppointmentService) Update(ctx context.Context, id string, upd AppointmentUpdate) (*models.Appointment, error) {
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	date, clock := appointment.Date, appointment.Time
	if upd.Date != nil {
		date = *upd.Date
	}
	if upd.Time != nil {
		clock = *upd.Time
	}
	if date, clock, err = models.NormalizeSlot(date, clock); err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	appointment.Date, appointment.Time = date, clock

	if upd.Status != nil {
		status, err := models.ParseAppointmentStatus(*upd.Status)
		if err != nil {
			return nil, apperrors.Validation("%s", err.Error())
		}
		appointment.Status = status
	}
	if upd.Reason != nil {
		appointment.Reason = *upd.Reason
	}
	if upd.SpecialNotes != nil {
		appointment.SpecialNotes = *upd.SpecialNotes
	}
	if upd.InsuranceProvider != nil {
		appointment.InsuranceProvider = *upd.InsuranceProvider
	}
	if upd.InsuranceNumber != nil {
		appointment.InsuranceNumber = *upd.InsuranceNumber
	}

	if err := s.store.SaveAppointment(ctx, appointment); err != nil {
		return nil, apperrors.Internal(err, "Failed to update appointment")
	}
	return appointment, nil
}

func (s *AppointmentService) ListAll(ctx context.Context) ([]models.Appointment, error) {
	return s.list(ctx, store.AppointmentFilter{})
}

func (s *AppointmentService) ListForDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	return s.list(ctx, store.AppointmentFilter{DoctorID: doctorID})
}

func (s *AppointmentService) ListForPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	return s.list(ctx, store.AppointmentFilter{PatientID: patientID})
}

func (s *AppointmentService) list(ctx context.Context, filter store.AppointmentFilter) ([]models.Appointment, error) {
	appointments, err := s.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch appointments")
	}
	return appointments, nil
}

// Delete reports whether an appointment was removed. Failures are logged, not returned.
func (s *AppointmentService) Delete(ctx context.Context, id string) bool {
	deleted, err := s.store.DeleteAppointment(ctx, id)
	if err != nil {
		s.log.Error("AppointmentService.Delete failed", zap.String("appointmentId", id), zap.Error(err))
		return false
	}
	return deleted
}
