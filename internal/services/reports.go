package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/models"
	"telemed-server/internal/store"
)

// ReportInput is the doctor's write-up. A nil ReportDate means now.
type ReportInput struct {
	AppointmentID      string
	Diagnosis          string
	PrescribedMedicine string
	DoctorNotes        string
	ReportDate         *time.Time
}

// Requester identifies the caller for access checks.
type Requester struct {
	UserID string
	Role   models.Role
}

type ReportService struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewReportService(st store.Store, logger *zap.Logger) *ReportService {
	return &ReportService{store: st, log: logger, now: time.Now}
}

// Upsert writes the single report of an appointment. Only that appointment's doctor may do it.
func (s *ReportService) Upsert(ctx context.Context, doctorUserID string, in ReportInput) (*models.MedicalReport, error) {
	appointment, err := s.store.FindAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, lookupErr(err, "Appointment not found")
	}
	doctor, err := s.store.FindDoctorByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, lookupErr(err, "Doctor profile not found")
	}
	if appointment.DoctorID != doctor.ID {
		return nil, apperrors.Forbidden("Only the appointment's doctor can write its report")
	}

	report, err := s.store.FindMedicalReportByAppointmentID(ctx, appointment.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		report = &models.MedicalReport{
			AppointmentID: appointment.ID,
			PatientID:     appointment.PatientID,
			DoctorID:      appointment.DoctorID,
		}
	case err != nil:
		return nil, apperrors.Internal(err, "Failed to load medical report")
	}

	report.Diagnosis = in.Diagnosis
	report.PrescribedMedicine = in.PrescribedMedicine
	report.DoctorNotes = in.DoctorNotes
	if in.ReportDate != nil {
		report.ReportDate = *in.ReportDate
	} else if report.ReportDate.IsZero() {
		report.ReportDate = s.now()
	}

	if err := s.store.SaveMedicalReport(ctx, report); err != nil {
		return nil, apperrors.Internal(err, "Failed to save medical report")
	}
	s.log.Info("ReportService.Upsert saved report",
		zap.String("appointmentId", appointment.ID),
		zap.String("reportId", report.ID),
	)
	return report, nil
}

// ForAppointment returns the report to its doctor, its patient or an admin.
func (s *ReportService) ForAppointment(ctx context.Context, who Requester, appointmentID string) (*models.MedicalReport, error) {
	appointment, err := s.store.FindAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, lookupErr(err, "Appointment not found")
	}
	if !s.canSee(ctx, who, appointment.DoctorID, appointment.PatientID) {
		return nil, apperrors.Forbidden("You are not authorized to view this report")
	}
	report, err := s.store.FindMedicalReportByAppointmentID(ctx, appointmentID)
	if err != nil {
		return nil, lookupErr(err, "Medical report not found")
	}
	return report, nil
}

// ForPatient lists a patient's reports for the patient, an admin, or a doctor who has seen them.
func (s *ReportService) ForPatient(ctx context.Context, who Requester, patientID string) ([]models.MedicalReport, error) {
	allowed := false
	switch who.Role {
	case models.RoleAdmin:
		allowed = true
	case models.RolePatient:
		allowed = s.canSee(ctx, who, "", patientID)
	case models.RoleDoctor:
		if doctor, err := s.store.FindDoctorByUserID(ctx, who.UserID); err == nil {
			seen, err := s.store.ListAppointments(ctx, store.AppointmentFilter{DoctorID: doctor.ID, PatientID: patientID})
			allowed = err == nil && len(seen) > 0
		}
	}
	if !allowed {
		return nil, apperrors.Forbidden("You are not authorized to view these reports")
	}

	reports, err := s.store.ListMedicalReportsByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch medical reports")
	}
	return reports, nil
}

func (s *ReportService) canSee(ctx context.Context, who Requester, doctorID, patientID string) bool {
	switch who.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDoctor:
		doctor, err := s.store.FindDoctorByUserID(ctx, who.UserID)
		return err == nil && doctor.ID == doctorID
	case models.RolePatient:
		patient, err := s.store.FindPatientByUserID(ctx, who.UserID)
		return err == nil && patient.ID == patientID
	}
	return false
}
