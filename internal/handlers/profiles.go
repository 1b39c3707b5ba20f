package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
	"telemed-server/internal/services"
	"telemed-server/internal/storage"
	"telemed-server/internal/utils"
)

// ProfileHandler serves the doctor directory and the doctor/patient profiles.
type ProfileHandler struct {
	Users *services.UserService
}

func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{Users: users}
}

// DoctorProfileRequest is the editable part of a doctor profile.
type DoctorProfileRequest struct {
	ClinicName     string `json:"clinicName" binding:"required"`
	Experience     int    `json:"experience" binding:"gte=0"`
	Specialization string `json:"specialization" binding:"required"`
	CheckUpFee     int    `json:"checkUpFee" binding:"gte=0"`
	City           string `json:"city"`
	State          string `json:"state"`
	Pincode        string `json:"pincode"`
	Area           string `json:"area"`
	Country        string `json:"country"`
	Qualification  string `json:"qualification"`
	Availability   string `json:"availability"`
	MobileNo       string `json:"mobileNo"`
}

// PatientProfileRequest is the editable part of a patient profile.
type PatientProfileRequest struct {
	Name           string `json:"name"`
	City           string `json:"city"`
	State          string `json:"state"`
	Pincode        string `json:"pincode"`
	Area           string `json:"area"`
	Country        string `json:"country"`
	Age            int    `json:"age" binding:"gte=0"`
	Gender         string `json:"gender"`
	MobileNo       string `json:"mobileNo"`
	MedicalHistory string `json:"medicalHistory"`
}

// ListDoctors returns every approved doctor.
func (h *ProfileHandler) ListDoctors(c *gin.Context) {
	doctors, err := h.Users.ListDoctors(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

func (h *ProfileHandler) GetDoctor(c *gin.Context) {
	doctor, err := h.Users.GetDoctor(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctor fetched successfully", doctor)
}

func (h *ProfileHandler) GetMyDoctorProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	doctor, err := h.Users.DoctorProfile(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctor profile fetched successfully", doctor)
}

func (h *ProfileHandler) UpsertMyDoctorProfile(c *gin.Context) {
	var req DoctorProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	doctor, err := h.Users.UpsertDoctorProfile(c.Request.Context(), userID, models.Doctor{
		ClinicName:     req.ClinicName,
		Experience:     req.Experience,
		Specialization: req.Specialization,
		CheckUpFee:     req.CheckUpFee,
		City:           req.City,
		State:          req.State,
		Pincode:        req.Pincode,
		Area:           req.Area,
		Country:        req.Country,
		Qualification:  req.Qualification,
		Availability:   req.Availability,
		MobileNo:       req.MobileNo,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctor profile saved successfully", doctor)
}

// UploadLicense stores the licence proof sent as the multipart field "file".
func (h *ProfileHandler) UploadLicense(c *gin.Context) {
	if !h.Users.UploadsEnabled() {
		utils.Error(c, http.StatusServiceUnavailable, "File uploads are not configured")
		return
	}
	upload, closeFn, ok := readUpload(c, storage.LicenseContentTypes)
	if !ok {
		return
	}
	defer closeFn()

	userID, _ := middleware.GetUserIDFromContext(c)
	doctor, err := h.Users.SetLicenseProof(c.Request.Context(), userID, upload)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Licence proof uploaded successfully", doctor)
}

func (h *ProfileHandler) GetMyPatientProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	patient, err := h.Users.PatientProfile(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Patient profile fetched successfully", patient)
}

func (h *ProfileHandler) UpsertMyPatientProfile(c *gin.Context) {
	var req PatientProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	patient, err := h.Users.UpsertPatientProfile(c.Request.Context(), userID, models.Patient{
		Name:           req.Name,
		City:           req.City,
		State:          req.State,
		Pincode:        req.Pincode,
		Area:           req.Area,
		Country:        req.Country,
		Age:            req.Age,
		Gender:         req.Gender,
		MobileNo:       req.MobileNo,
		MedicalHistory: req.MedicalHistory,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Patient profile saved successfully", patient)
}

// readUpload opens the multipart "file" field after checking its size and type.
// On failure the response is already written.
func readUpload(c *gin.Context, allowed []string) (services.Upload, func(), bool) {
	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "A file is required in the \"file\" field")
		return services.Upload{}, nil, false
	}
	contentType, err := storage.ValidateUpload(header, allowed)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return services.Upload{}, nil, false
	}
	file, err := header.Open()
	if err != nil {
		utils.InternalServerError(c, "Failed to read uploaded file")
		return services.Upload{}, nil, false
	}
	return services.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, true
}
