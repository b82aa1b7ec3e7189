package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/estate-crm/models"
	"github.com/yeremiapane/estate-crm/services"
	"github.com/yeremiapane/estate-crm/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB       *gorm.DB
	Users    *services.UserService
	Presence *services.UserStatusService
}

func NewUserController(db *gorm.DB, users *services.UserService, presence *services.UserStatusService) *UserController {
	return &UserController{DB: db, Users: users, Presence: presence}
}

type registerRequest struct {
	CompanyID uint   `json:"company_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

type memberRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin manager agent"`
}

// Register membuka company baru. User pertama sebuah company menjadi admin;
// anggota berikutnya hanya bisa ditambahkan admin lewat AddMember.
func (uc *UserController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := newUser(req.CompanyID, req.Name, req.Email, req.Password, "admin")
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	err = uc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var members int64
		if err := tx.Model(&models.User{}).Where("company_id = ?", req.CompanyID).Count(&members).Error; err != nil {
			return err
		}
		if members > 0 {
			return services.ErrCompanyExists
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, services.ErrCompanyExists) {
		utils.RespondError(c, http.StatusForbidden, err)
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusConflict, errors.New("email already registered"))
		return
	}

	uc.respondCreated(c, user, "User registered")
}

// AddMember -> admin menambahkan user ke company-nya sendiri
func (uc *UserController) AddMember(c *gin.Context) {
	_, companyID, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Role == "" {
		req.Role = "agent"
	}

	user, err := newUser(companyID, req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := uc.DB.WithContext(c.Request.Context()).Create(user).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, errors.New("email already registered"))
		return
	}

	uc.respondCreated(c, user, "User added")
}

func newUser(companyID uint, name, email, password, role string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &models.User{
		CompanyID: companyID,
		Name:      name,
		Email:     strings.ToLower(email),
		Password:  string(hashed),
		Role:      role,
		NotificationSettings: models.NotificationSettings{
			EmailReminders: true,
		},
	}, nil
}

func (uc *UserController) respondCreated(c *gin.Context, user *models.User, message string) {
	utils.InfoLogger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"company_id": user.CompanyID,
		"role":       user.Role,
	}).Info("new user registered")

	utils.RespondJSON(c, http.StatusCreated, message, gin.H{
		"user_id": user.ID,
		"role":    user.Role,
	})
}

// Login user -> return JWT
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	err := uc.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(input.Email)).
		First(&user).Error
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	token, err := utils.GenerateToken(user.ID, user.CompanyID, user.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Login success", gin.H{
		"token": token,
		"user":  user,
	})
}

func (uc *UserController) GetNotificationSettings(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	user, err := uc.Users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification settings", settingsView(user))
}

func (uc *UserController) UpdateNotificationSettings(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var body services.NotificationSettingsUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := uc.Users.UpdateNotificationSettings(c.Request.Context(), userID, body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification settings updated", settingsView(user))
}

// GetStatuses -> status presence untuk ?ids=1,2,3, hanya user satu company
func (uc *UserController) GetStatuses(c *gin.Context) {
	_, companyID, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("ids query parameter is required"))
		return
	}

	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid user id: "+part))
			return
		}
		ids = append(ids, uint(id))
	}

	// id di luar company caller diabaikan
	members, err := uc.Users.CompanyMemberIDs(c.Request.Context(), companyID, ids)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	statuses := uc.Presence.GetStatuses(members)
	out := make(map[string]services.PresenceEntry, len(statuses))
	for id, entry := range statuses {
		// session id tidak dibuka ke client lain
		entry.SessionID = ""
		out[strconv.FormatUint(uint64(id), 10)] = entry
	}
	utils.RespondJSON(c, http.StatusOK, "User statuses", out)
}

func settingsView(user *models.User) gin.H {
	timeline := user.ReminderTimeline()
	return gin.H{
		"reminder_timeline": timeline,
		"effective_ladder":  services.ResolveLadder(timeline),
		"email_reminders":   user.NotificationSettings.EmailReminders,
	}
}

// respondServiceError memetakan sentinel error service ke status HTTP.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrLeadNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrReminderInPast),
		errors.Is(err, services.ErrInvalidTimeline),
		errors.Is(err, services.ErrInvalidLead):
		utils.RespondError(c, http.StatusBadRequest, err)
	default:
		utils.ErrorLogger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
