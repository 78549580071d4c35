package controllers

import (
	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/domain/services/container"
	"teleconsult-http-service/internal/error/code"
	"teleconsult-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// InterfacePresenceController defines the presence controller interface
type InterfacePresenceController interface {
	Heartbeat()
	ReportActivity()
	SetOffline()
	GetPresence()
	GetRoster()
}

// PresenceController handles presence requests
type PresenceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewPresenceController creates a new presence controller
func NewPresenceController(ctx *gin.Context, container *container.ServiceContainer) InterfacePresenceController {
	return &PresenceController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandlePresenceFunc returns a gin handler for presence requests
func HandlePresenceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewPresenceController(ctx, container)

		switch method {
		case "heartbeat":
			controller.Heartbeat()
		case "activity":
			controller.ReportActivity()
		case "offline":
			controller.SetOffline()
		case "getPresence":
			controller.GetPresence()
		case "getRoster":
			controller.GetRoster()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

func (c *PresenceController) presenceService() services.InterfacePresenceService {
	return c.Container.GetService("presence").(services.InterfacePresenceService)
}

func (c *PresenceController) currentUID() (string, bool) {
	uid, exists := c.Ctx.Get("uid")
	if !exists {
		response.Unauthorized(c.Ctx)
		return "", false
	}
	uidStr, ok := uid.(string)
	if !ok || uidStr == "" {
		response.Unauthorized(c.Ctx)
		return "", false
	}
	return uidStr, true
}

// Heartbeat refreshes the acting user's presence
// @Summary      Presence heartbeat
// @Description  Keep the user's presence alive. Clients send this every 30 seconds; a user idle past 5 minutes is demoted to away.
// @Tags         Presence
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /presence/heartbeat [post]
func (c *PresenceController) Heartbeat() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	entry, err := c.presenceService().Heartbeat(uid)
	if err != nil {
		response.Fail(c.Ctx, code.ErrPresenceUnavailable, nil)
		return
	}

	response.Success(c.Ctx, entry)
}

// ReportActivity records user interaction
// @Summary      Report activity
// @Description  Mark the user as interacting, bringing them online and resetting the idle clock.
// @Tags         Presence
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /presence/activity [post]
func (c *PresenceController) ReportActivity() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	entry, err := c.presenceService().ReportActivity(uid)
	if err != nil {
		response.Fail(c.Ctx, code.ErrPresenceUnavailable, nil)
		return
	}

	response.Success(c.Ctx, entry)
}

// SetOffline drops the acting user's presence
// @Summary      Go offline
// @Description  Explicitly mark the user offline, used on logout.
// @Tags         Presence
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /presence/offline [post]
func (c *PresenceController) SetOffline() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	if err := c.presenceService().SetOffline(uid); err != nil {
		response.Fail(c.Ctx, code.ErrPresenceUnavailable, nil)
		return
	}

	response.Success(c.Ctx, gin.H{"state": "offline"})
}

// GetPresence returns one user's presence
// @Summary      Get a user's presence
// @Tags         Presence
// @Produce      json
// @Param        uid path string true "User UID"
// @Success      200  {object}  response.Response
// @Router       /presence/{uid} [get]
func (c *PresenceController) GetPresence() {
	entry, err := c.presenceService().GetPresence(c.Ctx.Param("uid"))
	if err != nil {
		response.Fail(c.Ctx, code.ErrPresenceUnavailable, nil)
		return
	}

	response.Success(c.Ctx, entry)
}

// GetRoster lists callable supervisors with their presence
// @Summary      Supervisor roster
// @Description  List all active supervisors with live presence, the list facility staff pick a callee from.
// @Tags         Presence
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /presence/roster [get]
func (c *PresenceController) GetRoster() {
	roster, err := c.presenceService().GetRoster()
	if err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, roster)
}
