package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/estate-crm/models"
	"github.com/yeremiapane/estate-crm/services"
	"github.com/yeremiapane/estate-crm/utils"
)

type LeadController struct {
	Leads *services.LeadService
	Users *services.UserService
}

func NewLeadController(leads *services.LeadService, users *services.UserService) *LeadController {
	return &LeadController{Leads: leads, Users: users}
}

type reminderRequest struct {
	Date    time.Time `json:"date" binding:"required"`
	Message string    `json:"message"`
}

// CreateLead -> lead baru di company user yang login
func (lc *LeadController) CreateLead(c *gin.Context) {
	_, companyID, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var body struct {
		Name       string           `json:"name" binding:"required"`
		Email      string           `json:"email"`
		Phone      string           `json:"phone"`
		Status     string           `json:"status"`
		AssignedTo *uint            `json:"assigned_to"`
		Reminder   *reminderRequest `json:"reminder"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.AssignedTo != nil && !lc.sameCompany(c, *body.AssignedTo, companyID) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("assigned user not found in company"))
		return
	}

	lead := models.Lead{
		CompanyID:  companyID,
		Name:       body.Name,
		Email:      body.Email,
		Phone:      body.Phone,
		Status:     body.Status,
		AssignedTo: body.AssignedTo,
	}
	if lead.Status == "" {
		lead.Status = "new"
	}
	if body.Reminder != nil {
		date := body.Reminder.Date.UTC()
		lead.Reminder = models.Reminder{Date: &date, Message: body.Reminder.Message}
	}

	if err := lc.Leads.CreateLead(c.Request.Context(), &lead); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Lead created", lead)
}

func (lc *LeadController) GetLead(c *gin.Context) {
	lc.withLead(c, func(companyID, leadID uint) (*models.Lead, error) {
		return lc.Leads.GetLead(c.Request.Context(), companyID, leadID)
	}, "Lead detail")
}

// SetReminder -> PUT /leads/:lead_id/reminder
func (lc *LeadController) SetReminder(c *gin.Context) {
	var body reminderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	lc.withLead(c, func(companyID, leadID uint) (*models.Lead, error) {
		return lc.Leads.SetReminder(c.Request.Context(), companyID, leadID, body.Date, body.Message)
	}, "Reminder set")
}

func (lc *LeadController) ClearReminder(c *gin.Context) {
	lc.withLead(c, func(companyID, leadID uint) (*models.Lead, error) {
		return lc.Leads.ClearReminder(c.Request.Context(), companyID, leadID)
	}, "Reminder cleared")
}

func (lc *LeadController) CompleteReminder(c *gin.Context) {
	lc.withLead(c, func(companyID, leadID uint) (*models.Lead, error) {
		return lc.Leads.CompleteReminder(c.Request.Context(), companyID, leadID)
	}, "Reminder completed")
}

func (lc *LeadController) withLead(c *gin.Context, fn func(companyID, leadID uint) (*models.Lead, error), message string) {
	_, companyID, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	leadID, err := parseIDParam(c, "lead_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	lead, err := fn(companyID, leadID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, lead)
}

func (lc *LeadController) sameCompany(c *gin.Context, userID, companyID uint) bool {
	user, err := lc.Users.GetUser(c.Request.Context(), userID)
	return err == nil && user.CompanyID == companyID
}
