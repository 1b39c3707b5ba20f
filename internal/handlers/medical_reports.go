package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/middleware"
	"telemed-server/internal/services"
	"telemed-server/internal/utils"
)

// MedicalReportHandler handles the doctor's visit reports.
type MedicalReportHandler struct {
	Reports *services.ReportService
}

// NewMedicalReportHandler creates a new MedicalReportHandler.
func NewMedicalReportHandler(reports *services.ReportService) *MedicalReportHandler {
	return &MedicalReportHandler{Reports: reports}
}

// MedicalReportRequest represents the request body for writing a report.
type MedicalReportRequest struct {
	AppointmentID      string     `json:"appointmentId" binding:"required"`
	Diagnosis          string     `json:"diagnosis" binding:"required"`
	PrescribedMedicine string     `json:"prescribedMedicine"`
	DoctorNotes        string     `json:"doctorNotes"`
	ReportDate         *time.Time `json:"reportDate"`
}

func requester(c *gin.Context) services.Requester {
	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	return services.Requester{UserID: userID, Role: role}
}

// SaveMedicalReport creates or replaces the report of an appointment. Doctors only.
func (h *MedicalReportHandler) SaveMedicalReport(c *gin.Context) {
	var req MedicalReportRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorUserID, _ := middleware.GetUserIDFromContext(c)
	report, err := h.Reports.Upsert(c.Request.Context(), doctorUserID, services.ReportInput{
		AppointmentID:      req.AppointmentID,
		Diagnosis:          req.Diagnosis,
		PrescribedMedicine: req.PrescribedMedicine,
		DoctorNotes:        req.DoctorNotes,
		ReportDate:         req.ReportDate,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Medical report saved successfully", report)
}

func (h *MedicalReportHandler) GetForAppointment(c *gin.Context) {
	report, err := h.Reports.ForAppointment(c.Request.Context(), requester(c), c.Param("appointmentId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Medical report fetched successfully", report)
}

// GetForPatient lists a patient's reports, newest first.
func (h *MedicalReportHandler) GetForPatient(c *gin.Context) {
	reports, err := h.Reports.ForPatient(c.Request.Context(), requester(c), c.Param("patientId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Medical reports fetched successfully", reports)
}
