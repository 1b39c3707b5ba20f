package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/gateway"
	"telemed-server/internal/metrics"
	"telemed-server/internal/models"
	"telemed-server/internal/store"
)

const (
	PaymentMethodRazorpay = "Razorpay"
	reasonWindowExpired   = "payment window expired"
)

// CreateOrderRequest starts a payment for a slot. PatientUserID is the authenticated account.
type CreateOrderRequest struct {
	DoctorID      string
	PatientUserID string
	Currency      string
	Appointment   BookingDetails
}

// OrderResponse is what the client needs to open the checkout.
type OrderResponse struct {
	OrderID     string  `json:"orderId"`
	Amount      float64 `json:"amount"`
	AmountMinor int64   `json:"amountMinor"`
	Currency    string  `json:"currency"`
	KeyID       string  `json:"keyId"`
}

// VerifyRequest is the checkout callback plus the slot being booked.
type VerifyRequest struct {
	OrderID     string
	PaymentID   string
	Signature   string
	Appointment BookingDetails
}

type VerifyResult struct {
	Appointment *models.Appointment `json:"appointment"`
	Payment     *models.Payment     `json:"payment"`
}

type PaymentService struct {
	store           store.Store
	appointments    *AppointmentService
	gateway         gateway.Client
	defaultCurrency string
	metrics         *metrics.Metrics
	log             *zap.Logger
	now             func() time.Time
}

func NewPaymentService(st store.Store, appointments *AppointmentService, gw gateway.Client, currency string, m *metrics.Metrics, logger *zap.Logger) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		store:           st,
		appointments:    appointments,
		gateway:         gw,
		defaultCurrency: currency,
		metrics:         m,
		log:             logger,
		now:             time.Now,
	}
}

// CreateOrder opens a gateway order for the doctor's fee and records a PENDING payment.
// Two orders for the same free slot can both succeed; the slot is only claimed on verification.
func (s *PaymentService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	patient, err := s.store.FindPatientByUserID(ctx, req.PatientUserID)
	if err != nil {
		return nil, lookupErr(err, "Patient profile not found")
	}
	doctor, err := s.store.FindDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, lookupErr(err, "Doctor not found")
	}

	available, err := s.appointments.CheckAvailability(ctx, doctor.ID, req.Appointment.Date, req.Appointment.Time)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperrors.Conflict("Selected time slot is not available")
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	amount := float64(doctor.CheckUpFee)
	amountMinor := int64(doctor.CheckUpFee) * 100

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  "appointment_" + strconv.FormatInt(s.now().UnixMilli(), 10),
		Notes: map[string]string{
			"doctorId":        doctor.ID,
			"patientId":       patient.ID,
			"appointmentDate": req.Appointment.Date,
			"appointmentTime": req.Appointment.Time,
		},
	})
	if err != nil {
		s.log.Error("PaymentService.CreateOrder gateway call failed",
			zap.String("doctorId", doctor.ID),
			zap.Error(err),
		)
		return nil, apperrors.ExternalService(err, "Failed to create payment order")
	}

	payment := &models.Payment{
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       currency,
		Status:         models.PaymentPending,
		PatientID:      patient.ID,
		DoctorID:       doctor.ID,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, apperrors.Internal(err, "Failed to save payment record")
	}
	s.metrics.PaymentStatus(string(models.PaymentPending))

	s.log.Info("PaymentService.CreateOrder created order",
		zap.String("orderId", order.ID),
		zap.String("doctorId", doctor.ID),
		zap.String("patientId", patient.ID),
		zap.Int64("amountMinor", amountMinor),
	)
	return &OrderResponse{
		OrderID:     order.ID,
		Amount:      amount,
		AmountMinor: amountMinor,
		Currency:    currency,
		KeyID:       s.gateway.KeyID(),
	}, nil
}

// VerifyAndBook checks the gateway signature, then books the slot and completes the payment
// in one transaction. A forged signature leaves the payment untouched. Any later failure
// marks a still-pending payment FAILED before the error is returned.
func (s *PaymentService) VerifyAndBook(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.log.Warn("PaymentService.VerifyAndBook invalid signature", zap.String("orderId", req.OrderID))
		return nil, apperrors.InvalidSignature("Invalid payment signature")
	}

	payment, err := s.store.FindPaymentByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, lookupErr(err, "Payment record not found")
	}
	if payment.Status.Terminal() {
		return nil, apperrors.Conflict("Payment is already %s", payment.Status)
	}

	result, err := s.complete(ctx, payment, req)
	if err != nil {
		s.markFailed(ctx, req.OrderID, err.Error())
		return nil, passThrough(err, "Payment verification failed")
	}

	s.metrics.PaymentStatus(string(models.PaymentCompleted))
	s.metrics.AppointmentBooked("payment")
	s.log.Info("PaymentService.VerifyAndBook completed payment",
		zap.String("orderId", req.OrderID),
		zap.String("appointmentId", result.Appointment.ID),
	)
	return result, nil
}

func (s *PaymentService) complete(ctx context.Context, payment *models.Payment, req VerifyRequest) (*VerifyResult, error) {
	date, clock, err := models.NormalizeSlot(req.Appointment.Date, req.Appointment.Time)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	booking := BookingRequest{
		DoctorID:       payment.DoctorID,
		PatientID:      payment.PatientID,
		BookingDetails: req.Appointment,
	}
	booking.Date, booking.Time = date, clock

	var result VerifyResult
	err = s.appointments.withSlotLock(ctx, payment.DoctorID, date, clock, func() error {
		return s.store.Transaction(ctx, func(tx store.Store) error {
			current, err := tx.FindPaymentByOrderID(ctx, req.OrderID)
			if err != nil {
				return lookupErr(err, "Payment record not found")
			}
			if current.Status.Terminal() {
				return apperrors.Conflict("Payment is already %s", current.Status)
			}

			appointment, err := s.appointments.bookExclusive(ctx, tx, booking)
			if err != nil {
				return err
			}

			paidAt := s.now()
			current.GatewayPaymentID = req.PaymentID
			current.Signature = req.Signature
			current.Status = models.PaymentCompleted
			current.PaymentMethod = PaymentMethodRazorpay
			current.PaidAt = &paidAt
			current.AppointmentID = &appointment.ID
			if err := tx.SavePayment(ctx, current); err != nil {
				return apperrors.Internal(err, "Failed to update payment")
			}

			result = VerifyResult{Appointment: appointment, Payment: current}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// markFailed is best effort: it only moves a PENDING payment and logs its own failures.
func (s *PaymentService) markFailed(ctx context.Context, orderID, reason string) bool {
	ctx = context.WithoutCancel(ctx)
	changed := false
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		payment, err := tx.FindPaymentByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if payment.Status.Terminal() {
			return nil
		}
		payment.Status = models.PaymentFailed
		payment.FailureReason = reason
		if err := tx.SavePayment(ctx, payment); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		s.log.Error("PaymentService.markFailed could not record failure",
			zap.String("orderId", orderID),
			zap.Error(err),
		)
		return false
	}
	if changed {
		s.metrics.PaymentStatus(string(models.PaymentFailed))
		s.log.Info("PaymentService.markFailed payment failed",
			zap.String("orderId", orderID),
			zap.String("reason", reason),
		)
	}
	return changed
}

func (s *PaymentService) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	payment, err := s.store.FindPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, lookupErr(err, "Payment not found")
	}
	return payment, nil
}

// ExpireStale fails PENDING payments created more than olderThan ago and returns how many moved.
func (s *PaymentService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.store.ListPendingPaymentsBefore(ctx, cutoff)
	if err != nil {
		return 0, apperrors.Internal(err, "Failed to list pending payments")
	}

	expired := 0
	for _, p := range stale {
		if s.markFailed(ctx, p.GatewayOrderID, reasonWindowExpired) {
			expired++
		}
	}
	return expired, nil
}
