package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/config"
	"telemed-server/internal/middleware"
	"telemed-server/internal/services"
	"telemed-server/internal/storage"
	"telemed-server/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication and the caller's own account.
type AuthHandler struct {
	Auth  *services.AuthService
	Users *services.UserService
	Cfg   *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *services.AuthService, users *services.UserService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Users: users, Cfg: cfg}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"omitempty,oneof=patient doctor admin PATIENT DOCTOR ADMIN"`
}

// Register handles user registration. Doctors wait for admin approval.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return // Error response handled by BindAndValidate
	}

	user, err := h.Auth.Register(c.Request.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	session, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)
	utils.Success(c, "Login successful", session)
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates the refresh token. The cookie wins over the body.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	session, err := h.Auth.Refresh(c.Request.Context(), token)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)
	utils.Success(c, "Access token refreshed successfully", session)
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes the refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		utils.RespondError(c, err)
		return
	}

	h.setRefreshCookie(c, "", -1)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(refreshCookie, value, maxAge, "/", "", h.Cfg.Environment != "development", true)
}

// GetProfile handles fetching the currently authenticated user's account.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	user, err := h.Users.GetUser(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating the account name.
type UpdateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UpdateProfile handles updating the currently authenticated user's name.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	user, err := h.Users.UpdateName(c.Request.Context(), userID, req.FirstName, req.LastName)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

// UploadAvatar stores a profile picture sent as the multipart field "file".
func (h *AuthHandler) UploadAvatar(c *gin.Context) {
	if !h.Users.UploadsEnabled() {
		utils.Error(c, http.StatusServiceUnavailable, "File uploads are not configured")
		return
	}
	upload, closeFn, ok := readUpload(c, storage.AvatarContentTypes)
	if !ok {
		return
	}
	defer closeFn()

	userID, _ := middleware.GetUserIDFromContext(c)
	user, err := h.Users.SetAvatar(c.Request.Context(), userID, upload)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile image updated successfully", user.Sanitize())
}
