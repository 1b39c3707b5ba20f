package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/config"
	"telemed-server/internal/handlers"
	"telemed-server/internal/metrics"
	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Admin         *handlers.AdminHandler
	Profiles      *handlers.ProfileHandler
	Appointments  *handlers.AppointmentHandler
	Payments      *handlers.PaymentHandler
	Messages      *handlers.MessageHandler
	Reports       *handlers.MedicalReportHandler
	Advice        *handlers.AdviceHandler
	WebSocket     *handlers.WebSocketHandler
	Metrics       *metrics.Metrics
	AdviceLimiter *middleware.RateLimiter
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, cfg *config.Config, h Handlers) {
	if h.Metrics != nil {
		router.Use(h.Metrics.Middleware())
	}
	if h.AdviceLimiter == nil {
		h.AdviceLimiter = middleware.NewRateLimiter(cfg.AdviceRatePerMinute, time.Minute)
	}

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", h.Auth.Register)
			authRoutes.POST("/login", h.Auth.Login)
			authRoutes.POST("/refresh-token", h.Auth.RefreshToken)
		}

		public.GET("/doctors", h.Profiles.ListDoctors)

		// Browsers cannot send headers on the handshake, so the token rides in the query.
		public.GET("/ws", middleware.QueryTokenAuth(cfg), h.WebSocket.HandleConnect)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", h.Auth.Logout)
			authRoutesPrivate.GET("/profile", h.Auth.GetProfile)
			authRoutesPrivate.PUT("/profile", h.Auth.UpdateProfile)
			authRoutesPrivate.POST("/profile/avatar", h.Auth.UploadAvatar)
		}

		doctorRoutes := private.Group("/doctors")
		{
			own := doctorRoutes.Group("/me", middleware.RoleAuthMiddleware(models.RoleDoctor))
			{
				own.GET("", h.Profiles.GetMyDoctorProfile)
				own.PUT("", h.Profiles.UpsertMyDoctorProfile)
				own.POST("/license", h.Profiles.UploadLicense)
			}
			doctorRoutes.GET("/:id", h.Profiles.GetDoctor)
		}

		patientRoutes := private.Group("/patients/me", middleware.RoleAuthMiddleware(models.RolePatient))
		{
			patientRoutes.GET("", h.Profiles.GetMyPatientProfile)
			patientRoutes.PUT("", h.Profiles.UpsertMyPatientProfile)
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", h.Appointments.CreateAppointment)
			appointmentRoutes.GET("", h.Appointments.GetAppointmentsForUser)
			appointmentRoutes.GET("/availability", h.Appointments.CheckAvailability)
			// Access to a single appointment is checked in the handler
			appointmentRoutes.GET("/:id", h.Appointments.GetAppointmentByID)
			appointmentRoutes.PUT("/:id", h.Appointments.UpdateAppointment)
			appointmentRoutes.DELETE("/:id", h.Appointments.DeleteAppointment)
			appointmentRoutes.PATCH("/:id/status", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), h.Appointments.UpdateAppointmentStatus)
		}

		paymentRoutes := private.Group("/payments")
		{
			paymentRoutes.POST("/orders", middleware.RoleAuthMiddleware(models.RolePatient), h.Payments.CreateOrder)
			paymentRoutes.POST("/verify", middleware.RoleAuthMiddleware(models.RolePatient), h.Payments.VerifyPayment)
			paymentRoutes.GET("/orders/:orderId", h.Payments.GetPayment)
		}

		messageRoutes := private.Group("/messages")
		{
			messageRoutes.POST("", h.Messages.SendMessage)
			messageRoutes.GET("/history/:userId", h.Messages.GetHistory)
			messageRoutes.GET("/conversations", h.Messages.GetConversations)
			messageRoutes.POST("/read/:senderId", h.Messages.MarkAsRead)
			messageRoutes.GET("/unread-count", h.Messages.GetUnreadCount)
			messageRoutes.DELETE("/:id", h.Messages.DeleteMessage)
		}

		reportRoutes := private.Group("/medical-reports")
		{
			reportRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor), h.Reports.SaveMedicalReport)
			reportRoutes.GET("/appointment/:appointmentId", h.Reports.GetForAppointment)
			reportRoutes.GET("/patient/:patientId", h.Reports.GetForPatient)
		}

		adminRoutes := private.Group("/admin", middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminRoutes.GET("/pending-doctors", h.Admin.GetPendingDoctors)
			adminRoutes.GET("/users", h.Admin.GetUsers)
			adminRoutes.GET("/users/:id", h.Admin.GetUserByID)
			adminRoutes.GET("/stats", h.Admin.GetStats)
			adminRoutes.POST("/doctors/:id/approve", h.Admin.ApproveDoctor)
			adminRoutes.POST("/doctors/:id/reject", h.Admin.RejectDoctor)
			adminRoutes.POST("/users/:id/toggle-status", h.Admin.ToggleUserStatus)
			adminRoutes.POST("/appointments", h.Appointments.CreateAppointmentUnchecked)
		}

		private.POST("/advice", h.AdviceLimiter.Limit(), h.Advice.GetAdvice)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
}
