package controllers

import (
	"errors"
	"strconv"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/domain/services/container"
	"teleconsult-http-service/internal/error/code"
	"teleconsult-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// InterfaceUserController defines the user controller interface
type InterfaceUserController interface {
	GetUsers()
	GetUser()
	CreateUser()
	UpdateUser()
	DeactivateUser()
	ReactivateUser()
	GetProfile()
	UpdateNotificationPreferences()
	RegisterFCMToken()
	RemoveFCMToken()
}

// UserController handles user management requests
type UserController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewUserController creates a new user controller
func NewUserController(ctx *gin.Context, container *container.ServiceContainer) InterfaceUserController {
	return &UserController{
		Ctx:       ctx,
		Container: container,
	}
}

// Request structures
type (
	// CreateUserRequest creates an account
	CreateUserRequest struct {
		Email       string  `json:"email" binding:"required,email" example:"nurse@facility.example"`
		Password    string  `json:"password" binding:"required,min=8" example:"s3cret-pass"`
		DisplayName string  `json:"displayName" binding:"required" example:"Jamie Rivera"`
		Role        string  `json:"role" binding:"required" example:"facility"`
		FacilityID  *string `json:"facilityId,omitempty" example:"sunrise-care"`
		PhoneNumber string  `json:"phoneNumber,omitempty" example:"+15550100"`
	}

	// UpdateUserRequest partially updates an account
	UpdateUserRequest struct {
		DisplayName *string `json:"displayName,omitempty"`
		PhoneNumber *string `json:"phoneNumber,omitempty"`
		Role        *string `json:"role,omitempty"`
		FacilityID  *string `json:"facilityId,omitempty"`
		Password    *string `json:"password,omitempty"`
	}

	// RegisterTokenRequest registers a push token for a device
	RegisterTokenRequest struct {
		Token      string `json:"token" binding:"required"`
		DeviceInfo string `json:"deviceInfo,omitempty" example:"Chrome 126 on macOS"`
	}

	// RemoveTokenRequest removes a push token
	RemoveTokenRequest struct {
		Token string `json:"token" binding:"required"`
	}
)

// HandleUserFunc returns a gin handler for user management requests
func HandleUserFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewUserController(ctx, container)

		switch method {
		case "getUsers":
			controller.GetUsers()
		case "getUser":
			controller.GetUser()
		case "createUser":
			controller.CreateUser()
		case "updateUser":
			controller.UpdateUser()
		case "deactivateUser":
			controller.DeactivateUser()
		case "reactivateUser":
			controller.ReactivateUser()
		case "getProfile":
			controller.GetProfile()
		case "updateNotificationPreferences":
			controller.UpdateNotificationPreferences()
		case "registerFCMToken":
			controller.RegisterFCMToken()
		case "removeFCMToken":
			controller.RemoveFCMToken()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

func (c *UserController) userService() services.InterfaceUserService {
	return c.Container.GetService("user").(services.InterfaceUserService)
}

// GetUsers lists accounts
// @Summary      List users
// @Description  Page through accounts with optional role and facility filters. Admin only.
// @Tags         Users
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        role query string false "Filter by role"
// @Param        facility_id query string false "Filter by facility"
// @Param        include_inactive query bool false "Include deactivated accounts"
// @Success      200  {object}  response.Response
// @Router       /users [get]
func (c *UserController) GetUsers() {
	page, _ := strconv.Atoi(c.Ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Ctx.DefaultQuery("page_size", "20"))
	role := c.Ctx.Query("role")
	facilityID := c.Ctx.Query("facility_id")
	includeInactive := c.Ctx.Query("include_inactive") == "true"

	users, total, err := c.userService().GetAllUsers(page, pageSize, role, facilityID, includeInactive)
	if err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{
		"users":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetUser returns a single account
// @Summary      Get a user
// @Tags         Users
// @Produce      json
// @Param        uid path string true "User UID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{uid} [get]
func (c *UserController) GetUser() {
	user, err := c.userService().GetUserByUID(c.Ctx.Param("uid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(c.Ctx, code.ErrUserNotFound, nil)
			return
		}
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, user)
}

// CreateUser creates an account
// @Summary      Create a user
// @Description  Create an account with one of the roles admin, supervisor or facility. Facility accounts require a facilityId.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request body CreateUserRequest true "Account parameters"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  ErrorResponse
// @Router       /users [post]
func (c *UserController) CreateUser() {
	var req CreateUserRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "invalid request parameters", nil)
		return
	}

	user := &models.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        models.UserRole(req.Role),
		FacilityID:  req.FacilityID,
		PhoneNumber: req.PhoneNumber,
		NotificationPreferences: models.NotificationPreferences{
			PushEnabled:       true,
			InAppSoundEnabled: true,
		},
	}

	if err := c.userService().CreateUser(user, req.Password); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrValidation, err.Error(), nil)
		return
	}

	response.Success(c.Ctx, user)
}

// UpdateUser partially updates an account
// @Summary      Update a user
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        uid path string true "User UID"
// @Param        request body UpdateUserRequest true "Fields to update"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{uid} [put]
func (c *UserController) UpdateUser() {
	var req UpdateUserRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "invalid request parameters", nil)
		return
	}

	updates := make(map[string]interface{})
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.FacilityID != nil {
		updates["facility_id"] = *req.FacilityID
	}
	if req.Password != nil {
		updates["password"] = *req.Password
	}

	user, err := c.userService().UpdateUser(c.Ctx.Param("uid"), updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(c.Ctx, code.ErrUserNotFound, nil)
			return
		}
		response.FailWithMessage(c.Ctx, code.ErrValidation, err.Error(), nil)
		return
	}

	response.Success(c.Ctx, user)
}

// DeactivateUser soft-deletes an account
// @Summary      Deactivate a user
// @Description  Flip the account inactive. The row and its call history survive; the user can no longer log in, call, or be called.
// @Tags         Users
// @Produce      json
// @Param        uid path string true "User UID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{uid} [delete]
func (c *UserController) DeactivateUser() {
	if err := c.userService().DeactivateUser(c.Ctx.Param("uid")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(c.Ctx, code.ErrUserNotFound, nil)
			return
		}
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{"deactivated": true})
}

// ReactivateUser restores a deactivated account
// @Summary      Reactivate a user
// @Tags         Users
// @Produce      json
// @Param        uid path string true "User UID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{uid}/reactivate [post]
func (c *UserController) ReactivateUser() {
	if err := c.userService().ReactivateUser(c.Ctx.Param("uid")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(c.Ctx, code.ErrUserNotFound, nil)
			return
		}
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{"reactivated": true})
}

// GetProfile returns the acting user's own account
// @Summary      Get own profile
// @Tags         Users
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /profile [get]
func (c *UserController) GetProfile() {
	uid, exists := c.Ctx.Get("uid")
	if !exists {
		response.Unauthorized(c.Ctx)
		return
	}

	user, err := c.userService().GetUserByUID(uid.(string))
	if err != nil {
		response.Fail(c.Ctx, code.ErrUserNotFound, nil)
		return
	}

	response.Success(c.Ctx, user)
}

// UpdateNotificationPreferences replaces the acting user's preferences
// @Summary      Update notification preferences
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request body models.NotificationPreferences true "Preferences"
// @Success      200  {object}  response.Response
// @Router       /profile/notification-preferences [put]
func (c *UserController) UpdateNotificationPreferences() {
	uid, exists := c.Ctx.Get("uid")
	if !exists {
		response.Unauthorized(c.Ctx)
		return
	}

	var prefs models.NotificationPreferences
	if err := c.Ctx.ShouldBindJSON(&prefs); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "invalid request parameters", nil)
		return
	}

	if err := c.userService().UpdateNotificationPreferences(uid.(string), prefs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(c.Ctx, code.ErrUserNotFound, nil)
			return
		}
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, prefs)
}

// RegisterFCMToken registers a push token for the acting user
// @Summary      Register a push token
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request body RegisterTokenRequest true "Token parameters"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  ErrorResponse
// @Router       /profile/fcm-tokens [post]
func (c *UserController) RegisterFCMToken() {
	uid, exists := c.Ctx.Get("uid")
	if !exists {
		response.Unauthorized(c.Ctx)
		return
	}

	var req RegisterTokenRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.Fail(c.Ctx, code.ErrPushTokenInvalid, nil)
		return
	}

	if err := c.userService().RegisterFCMToken(uid.(string), req.Token, req.DeviceInfo); err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{"registered": true})
}

// RemoveFCMToken removes a push token for the acting user
// @Summary      Remove a push token
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request body RemoveTokenRequest true "Token parameters"
// @Success      200  {object}  response.Response
// @Router       /profile/fcm-tokens [delete]
func (c *UserController) RemoveFCMToken() {
	uid, exists := c.Ctx.Get("uid")
	if !exists {
		response.Unauthorized(c.Ctx)
		return
	}

	var req RemoveTokenRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.Fail(c.Ctx, code.ErrPushTokenInvalid, nil)
		return
	}

	if err := c.userService().RemoveFCMToken(uid.(string), req.Token); err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{"removed": true})
}
