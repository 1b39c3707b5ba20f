package models

// Doctor is the professional profile owned by a doctor account. At most one per user.
type Doctor struct {
	BaseModel
	UserID           string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	ClinicName       string `gorm:"size:255" json:"clinicName"`
	Experience       int    `json:"experience"`
	Specialization   string `gorm:"size:255;index" json:"specialization"`
	CheckUpFee       int    `json:"checkUpFee"`
	City             string `gorm:"size:100;index" json:"city"`
	State            string `gorm:"size:100" json:"state"`
	Pincode          string `gorm:"size:20" json:"pincode"`
	Area             string `gorm:"size:100" json:"area"`
	Country          string `gorm:"size:100" json:"country"`
	Qualification    string `gorm:"size:255" json:"qualification"`
	Availability     string `gorm:"size:255" json:"availability"`
	MobileNo         string `gorm:"size:20" json:"mobileNo"`
	LicenseProofPath string `gorm:"size:512" json:"licenseProofPath,omitempty"`
}

// Patient is the demographic profile owned by a patient account. At most one per user.
type Patient struct {
	BaseModel
	UserID         string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Name           string `gorm:"size:255" json:"name"`
	City           string `gorm:"size:100" json:"city"`
	State          string `gorm:"size:100" json:"state"`
	Pincode        string `gorm:"size:20" json:"pincode"`
	Area           string `gorm:"size:100" json:"area"`
	Country        string `gorm:"size:100" json:"country"`
	Age            int    `json:"age"`
	Gender         string `gorm:"size:20" json:"gender"`
	MobileNo       string `gorm:"size:20" json:"mobileNo"`
	MedicalHistory string `gorm:"type:text" json:"medicalHistory"`
}

// DoctorListing pairs a doctor profile with its owner for the public directory.
type DoctorListing struct {
	Doctor
	Name  string `json:"name"`
	Email string `json:"email"`
}
