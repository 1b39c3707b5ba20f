package handlers

import (
	"github.com/gin-gonic/gin"

	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
	"telemed-server/internal/services"
	"telemed-server/internal/utils"
)

// PaymentHandler runs the pay-then-book checkout.
type PaymentHandler struct {
	Payments *services.PaymentService
	Users    *services.UserService
}

func NewPaymentHandler(payments *services.PaymentService, users *services.UserService) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Users: users}
}

// SlotRequest is the slot a payment is for.
type SlotRequest struct {
	Date              string `json:"date" binding:"required"`
	Time              string `json:"time" binding:"required"`
	Reason            string `json:"reason"`
	SpecialNotes      string `json:"specialNotes"`
	InsuranceProvider string `json:"insuranceProvider"`
	InsuranceNumber   string `json:"insuranceNumber"`
}

func (s SlotRequest) details() services.BookingDetails {
	return services.BookingDetails{
		Date:              s.Date,
		Time:              s.Time,
		Reason:            s.Reason,
		SpecialNotes:      s.SpecialNotes,
		InsuranceProvider: s.InsuranceProvider,
		InsuranceNumber:   s.InsuranceNumber,
	}
}

// CreateOrderRequest represents the request body for opening a checkout.
type CreateOrderRequest struct {
	DoctorID        string      `json:"doctorId" binding:"required"`
	Currency        string      `json:"currency"`
	AppointmentData SlotRequest `json:"appointmentData" binding:"required"`
}

// CreateOrder opens a gateway order for the doctor's fee. Patients only.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	order, err := h.Payments.CreateOrder(c.Request.Context(), services.CreateOrderRequest{
		DoctorID:      req.DoctorID,
		PatientUserID: userID,
		Currency:      req.Currency,
		Appointment:   req.AppointmentData.details(),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Payment order created successfully", order)
}

// VerifyPaymentRequest is the checkout callback plus the slot to book.
type VerifyPaymentRequest struct {
	OrderID         string      `json:"razorpay_order_id" binding:"required"`
	PaymentID       string      `json:"razorpay_payment_id" binding:"required"`
	Signature       string      `json:"razorpay_signature" binding:"required"`
	AppointmentData SlotRequest `json:"appointmentData" binding:"required"`
}

// VerifyPayment checks the signature and books the slot.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result, err := h.Payments.VerifyAndBook(c.Request.Context(), services.VerifyRequest{
		OrderID:     req.OrderID,
		PaymentID:   req.PaymentID,
		Signature:   req.Signature,
		Appointment: req.AppointmentData.details(),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Payment verified and appointment booked successfully", result)
}

// GetPayment returns a payment to its patient, its doctor or an admin.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	ctx := c.Request.Context()
	payment, err := h.Payments.GetByOrderID(ctx, c.Param("orderId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	allowed := role == models.RoleAdmin
	switch role {
	case models.RolePatient:
		patient, err := h.Users.PatientProfile(ctx, userID)
		allowed = err == nil && patient.ID == payment.PatientID
	case models.RoleDoctor:
		doctor, err := h.Users.DoctorProfile(ctx, userID)
		allowed = err == nil && doctor.ID == payment.DoctorID
	}
	if !allowed {
		utils.Forbidden(c, "You are not authorized to view this payment")
		return
	}
	utils.Success(c, "Payment fetched successfully", payment)
}
