package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
	"telemed-server/internal/services"
	"telemed-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Appointments *services.AppointmentService
	Users        *services.UserService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments *services.AppointmentService, users *services.UserService) *AppointmentHandler {
	return &AppointmentHandler{Appointments: appointments, Users: users}
}

// CreateAppointmentRequest represents the request body for booking a slot.
// PatientID is only read for doctors and admins; patients always book for themselves.
type CreateAppointmentRequest struct {
	DoctorID          string `json:"doctorId" binding:"required"`
	PatientID         string `json:"patientId"`
	Date              string `json:"date" binding:"required"`
	Time              string `json:"time" binding:"required"`
	Reason            string `json:"reason"`
	SpecialNotes      string `json:"specialNotes"`
	InsuranceProvider string `json:"insuranceProvider"`
	InsuranceNumber   string `json:"insuranceNumber"`
}

func (r CreateAppointmentRequest) details() services.BookingDetails {
	return services.BookingDetails{
		Date:              r.Date,
		Time:              r.Time,
		Reason:            r.Reason,
		SpecialNotes:      r.SpecialNotes,
		InsuranceProvider: r.InsuranceProvider,
		InsuranceNumber:   r.InsuranceNumber,
	}
}

// bookingFor resolves whose appointment this is. On failure the response is already written.
func (h *AppointmentHandler) bookingFor(c *gin.Context, req CreateAppointmentRequest) (services.BookingRequest, bool) {
	role, _ := middleware.GetUserRoleFromContext(c)
	patientID := req.PatientID
	if role == models.RolePatient {
		userID, _ := middleware.GetUserIDFromContext(c)
		patient, err := h.Users.PatientProfile(c.Request.Context(), userID)
		if err != nil {
			utils.RespondError(c, err)
			return services.BookingRequest{}, false
		}
		patientID = patient.ID
	}
	if patientID == "" {
		utils.BadRequest(c, "patientId is required")
		return services.BookingRequest{}, false
	}
	return services.BookingRequest{DoctorID: req.DoctorID, PatientID: patientID, BookingDetails: req.details()}, true
}

// CreateAppointment books a free slot. A slot already held returns 409.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	booking, ok := h.bookingFor(c, req)
	if !ok {
		return
	}

	appointment, err := h.Appointments.Book(c.Request.Context(), booking)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appointment)
}

// CreateAppointmentUnchecked records an appointment without the slot check. Admin only.
func (h *AppointmentHandler) CreateAppointmentUnchecked(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	booking, ok := h.bookingFor(c, req)
	if !ok {
		return
	}

	appointment, err := h.Appointments.BookDirect(c.Request.Context(), booking)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appointment)
}

// CheckAvailability answers whether doctorId is free at date/time.
func (h *AppointmentHandler) CheckAvailability(c *gin.Context) {
	doctorID, date, clock := c.Query("doctorId"), c.Query("date"), c.Query("time")
	if doctorID == "" || date == "" || clock == "" {
		utils.BadRequest(c, "doctorId, date and time query parameters are required")
		return
	}

	available, err := h.Appointments.CheckAvailability(c.Request.Context(), doctorID, date, clock)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Availability checked successfully", gin.H{"available": available})
}

// GetAppointmentsForUser lists the caller's appointments; admins see all of them.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)

	var (
		appointments []models.Appointment
		err          error
	)
	switch role {
	case models.RoleAdmin:
		appointments, err = h.Appointments.ListAll(ctx)
	case models.RoleDoctor:
		var doctor *models.Doctor
		if doctor, err = h.Users.DoctorProfile(ctx, userID); err == nil {
			appointments, err = h.Appointments.ListForDoctor(ctx, doctor.ID)
		}
	case models.RolePatient:
		var patient *models.Patient
		if patient, err = h.Users.PatientProfile(ctx, userID); err == nil {
			appointments, err = h.Appointments.ListForPatient(ctx, patient.ID)
		}
	default:
		utils.Forbidden(c, "User role not permitted to view appointments")
		return
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// involved reports whether the caller is an admin or a party to the appointment.
func (h *AppointmentHandler) involved(c *gin.Context, a *models.Appointment) bool {
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)

	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleDoctor:
		doctor, err := h.Users.DoctorProfile(ctx, userID)
		return err == nil && doctor.ID == a.DoctorID
	case models.RolePatient:
		patient, err := h.Users.PatientProfile(ctx, userID)
		return err == nil && patient.ID == a.PatientID
	}
	return false
}

// loadInvolved fetches the appointment in the path and checks access.
func (h *AppointmentHandler) loadInvolved(c *gin.Context) (*models.Appointment, bool) {
	appointment, err := h.Appointments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return nil, false
	}
	if !h.involved(c, appointment) {
		utils.Forbidden(c, "You are not authorized to access this appointment")
		return nil, false
	}
	return appointment, true
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointment, ok := h.loadInvolved(c)
	if !ok {
		return
	}
	utils.Success(c, "Appointment fetched successfully", appointment)
}

// UpdateAppointmentStatusRequest represents the request body for updating an appointment's status.
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAppointmentStatus sets any of pending, confirmed, rejected or completed.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if _, ok := h.loadInvolved(c); !ok {
		return
	}

	appointment, err := h.Appointments.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appointment)
}

// UpdateAppointmentRequest changes only the fields present in the body.
type UpdateAppointmentRequest struct {
	Date              *string `json:"date"`
	Time              *string `json:"time"`
	Reason            *string `json:"reason"`
	SpecialNotes      *string `json:"specialNotes"`
	InsuranceProvider *string `json:"insuranceProvider"`
	InsuranceNumber   *string `json:"insuranceNumber"`
	Status            *string `json:"status"`
}

func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	if _, ok := h.loadInvolved(c); !ok {
		return
	}

	appointment, err := h.Appointments.Update(c.Request.Context(), c.Param("id"), services.AppointmentUpdate{
		Date:              req.Date,
		Time:              req.Time,
		Reason:            req.Reason,
		SpecialNotes:      req.SpecialNotes,
		InsuranceProvider: req.InsuranceProvider,
		InsuranceNumber:   req.InsuranceNumber,
		Status:            req.Status,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment updated successfully", appointment)
}

// DeleteAppointment answers 404 when nothing was removed.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	if _, ok := h.loadInvolved(c); !ok {
		return
	}
	if !h.Appointments.Delete(c.Request.Context(), c.Param("id")) {
		utils.Error(c, http.StatusNotFound, "Appointment could not be deleted")
		return
	}
	utils.Success(c, "Appointment deleted successfully", nil)
}
