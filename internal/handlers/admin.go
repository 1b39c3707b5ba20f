package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"telemed-server/internal/models"
	"telemed-server/internal/services"
	"telemed-server/internal/utils"
)

// AdminHandler handles account moderation. Every route is admin-only.
type AdminHandler struct {
	Users *services.UserService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users *services.UserService) *AdminHandler {
	return &AdminHandler{Users: users}
}

func sanitizeAll(users []models.User) []models.UserSanitized {
	return lo.Map(users, func(u models.User, _ int) models.UserSanitized { return u.Sanitize() })
}

// GetPendingDoctors lists doctor accounts waiting for approval.
func (h *AdminHandler) GetPendingDoctors(c *gin.Context) {
	users, err := h.Users.PendingDoctors(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Pending doctors fetched successfully", sanitizeAll(users))
}

// GetUsers handles fetching all users.
func (h *AdminHandler) GetUsers(c *gin.Context) {
	users, err := h.Users.ListUsers(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Users fetched successfully", sanitizeAll(users))
}

// GetUserByID handles fetching a single user by ID.
func (h *AdminHandler) GetUserByID(c *gin.Context) {
	user, err := h.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

func (h *AdminHandler) ApproveDoctor(c *gin.Context) {
	user, err := h.Users.ApproveDoctor(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctor approved successfully", user.Sanitize())
}

// RejectDoctorRequest carries an optional reason that is echoed back.
type RejectDoctorRequest struct {
	Reason string `json:"reason"`
}

// RejectDoctor deletes a pending doctor account.
func (h *AdminHandler) RejectDoctor(c *gin.Context) {
	var req RejectDoctorRequest
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	user, err := h.Users.RejectDoctor(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctor rejected successfully", gin.H{
		"user":   user.Sanitize(),
		"reason": req.Reason,
	})
}

// ToggleUserStatus flips a non-admin account between active and blocked.
func (h *AdminHandler) ToggleUserStatus(c *gin.Context) {
	user, err := h.Users.ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "User status updated successfully", user.Sanitize())
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.Users.Stats(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Dashboard stats fetched successfully", stats)
}
