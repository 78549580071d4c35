package controllers

import (
	"errors"
	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/domain/services/container"
	"teleconsult-http-service/internal/error/code"
	"teleconsult-http-service/internal/error/response"
	"time"

	"github.com/gin-gonic/gin"
)

// InterfaceCallController defines the call controller interface
type InterfaceCallController interface {
	InitiateCall()
	AcceptCall()
	RejectCall()
	CancelCall()
	HangupCall()
	GetCall()
	GetCallSession()
	PublishSystemMessage()
}

// CallController handles call signaling requests
type CallController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewCallController creates a new call controller
func NewCallController(ctx *gin.Context, container *container.ServiceContainer) InterfaceCallController {
	return &CallController{
		Ctx:       ctx,
		Container: container,
	}
}

// Request structures
type (
	// InitiateCallRequest starts a call to a recipient
	InitiateCallRequest struct {
		RecipientID string `json:"recipientId" binding:"required" example:"f3b6f6a0-1c2d-4e5f-8a9b-0c1d2e3f4a5b"`
	}

	// CallSessionResponse is the live session view
	CallSessionResponse struct {
		CallID       string    `json:"callId" example:"9f8e7d6c-5b4a-3f2e-1d0c-b9a8f7e6d5c4"`
		CallerID     string    `json:"callerId"`
		RecipientID  string    `json:"recipientId"`
		RoomURL      string    `json:"roomUrl"`
		Status       string    `json:"status" example:"ringing"`
		StartTime    time.Time `json:"startTime"`
		LastActivity time.Time `json:"lastActivity"`
	}

	// PublishSystemMessageRequest publishes an operational notice
	PublishSystemMessageRequest struct {
		Type    string                 `json:"type" binding:"required" example:"notification"`
		Level   string                 `json:"level" binding:"required" example:"info"`
		Message string                 `json:"message" binding:"required" example:"Maintenance window tonight at 22:00"`
		Data    map[string]interface{} `json:"data,omitempty"`
	}
)

// HandleCallFunc returns a gin handler for call requests
func HandleCallFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewCallController(ctx, container)

		switch method {
		case "initiateCall":
			controller.InitiateCall()
		case "acceptCall":
			controller.AcceptCall()
		case "rejectCall":
			controller.RejectCall()
		case "cancelCall":
			controller.CancelCall()
		case "hangupCall":
			controller.HangupCall()
		case "getCall":
			controller.GetCall()
		case "getCallSession":
			controller.GetCallSession()
		case "publishSystemMessage":
			controller.PublishSystemMessage()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

// currentUID pulls the acting user's id from the auth middleware context.
func (c *CallController) currentUID() (string, bool) {
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

// failCallError maps service errors to business codes.
func (c *CallController) failCallError(err error) {
	switch {
	case errors.Is(err, services.ErrCallNotFound):
		response.Fail(c.Ctx, code.ErrCallNotFound, nil)
	case errors.Is(err, services.ErrInvalidTransition):
		response.Fail(c.Ctx, code.ErrCallInvalidTransition, nil)
	case errors.Is(err, services.ErrRecipientBusy), errors.Is(err, services.ErrCallerBusy):
		response.Fail(c.Ctx, code.ErrCallRecipientBusy, nil)
	case errors.Is(err, services.ErrNotParticipant):
		response.Fail(c.Ctx, code.ErrCallNotParticipant, nil)
	default:
		response.FailWithMessage(c.Ctx, code.ErrUnknown, err.Error(), nil)
	}
}

// InitiateCall starts a new call
// @Summary      Initiate a call
// @Description  Start a video call to a recipient. Provisions a room, creates the call record in ringing state, announces it over MQTT and arms the ring timeout.
// @Tags         Calls
// @Accept       json
// @Produce      json
// @Param        request body InitiateCallRequest true "Call request parameters"
// @Success      200  {object}  models.Call
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "Recipient busy"
// @Router       /calls [post]
func (c *CallController) InitiateCall() {
	var req InitiateCallRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "invalid request parameters", nil)
		return
	}

	uid, ok := c.currentUID()
	if !ok {
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	call, err := callService.InitiateCall(uid, req.RecipientID)
	if err != nil {
		c.failCallError(err)
		return
	}

	response.Success(c.Ctx, call)
}

// AcceptCall answers a ringing call
// @Summary      Accept a call
// @Description  Answer a ringing call. Only the recipient may accept.
// @Tags         Calls
// @Produce      json
// @Param        id path string true "Call ID"
// @Success      200  {object}  models.Call
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "Call no longer ringing"
// @Router       /calls/{id}/accept [post]
func (c *CallController) AcceptCall() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	call, err := callService.AcceptCall(c.Ctx.Param("id"), uid)
	if err != nil {
		c.failCallError(err)
		return
	}

	response.Success(c.Ctx, call)
}

// RejectCall declines a ringing call
// @Summary      Reject a call
// @Description  Decline a ringing call. Only the recipient may reject.
// @Tags         Calls
// @Produce      json
// @Param        id path string true "Call ID"
// @Success      200  {object}  models.Call
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /calls/{id}/reject [post]
func (c *CallController) RejectCall() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	call, err := callService.RejectCall(c.Ctx.Param("id"), uid)
	if err != nil {
		c.failCallError(err)
		return
	}

	response.Success(c.Ctx, call)
}

// CancelCall withdraws a ringing call
// @Summary      Cancel a call
// @Description  Withdraw a call that is still ringing. Only the caller may cancel.
// @Tags         Calls
// @Produce      json
// @Param        id path string true "Call ID"
// @Success      200  {object}  models.Call
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /calls/{id}/cancel [post]
func (c *CallController) CancelCall() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	call, err := callService.CancelCall(c.Ctx.Param("id"), uid)
	if err != nil {
		c.failCallError(err)
		return
	}

	response.Success(c.Ctx, call)
}

// HangupCall ends an active call
// @Summary      Hang up a call
// @Description  End an active call. Either party may hang up.
// @Tags         Calls
// @Produce      json
// @Param        id path string true "Call ID"
// @Success      200  {object}  models.Call
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /calls/{id}/hangup [post]
func (c *CallController) HangupCall() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	call, err := callService.HangupCall(c.Ctx.Param("id"), uid)
	if err != nil {
		c.failCallError(err)
		return
	}

	response.Success(c.Ctx, call)
}

// GetCall returns a call record
// @Summary      Get a call
// @Description  Fetch a call record by id. Only participants and admins may read it.
// @Tags         Calls
// @Produce      json
// @Param        id path string true "Call ID"
// @Success      200  {object}  models.Call
// @Failure      404  {object}  ErrorResponse
// @Router       /calls/{id} [get]
func (c *CallController) GetCall() {
	uid, ok := c.currentUID()
	if !ok {
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	call, err := callService.GetCall(c.Ctx.Param("id"))
	if err != nil {
		c.failCallError(err)
		return
	}

	role, _ := c.Ctx.Get("role")
	if !call.Participant(uid) && role != "admin" {
		response.Fail(c.Ctx, code.ErrCallNotParticipant, nil)
		return
	}

	response.Success(c.Ctx, call)
}

// GetCallSession returns the live session state
// @Summary      Get a live call session
// @Description  Fetch the in-memory session state for a live call.
// @Tags         Calls
// @Produce      json
// @Param        id path string true "Call ID"
// @Success      200  {object}  CallSessionResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /calls/{id}/session [get]
func (c *CallController) GetCallSession() {
	if _, ok := c.currentUID(); !ok {
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	session, exists := callService.GetCallSession(c.Ctx.Param("id"))
	if !exists {
		response.NotFound(c.Ctx, "call session not found")
		return
	}

	response.Success(c.Ctx, CallSessionResponse{
		CallID:       session.CallID,
		CallerID:     session.CallerID,
		RecipientID:  session.RecipientID,
		RoomURL:      session.RoomURL,
		Status:       string(session.Status),
		StartTime:    session.StartTime,
		LastActivity: session.LastActivity,
	})
}

// PublishSystemMessage publishes an operational notice
// @Summary      Publish a system message
// @Description  Broadcast an operational notice to all connected clients. Admin only.
// @Tags         Calls
// @Accept       json
// @Produce      json
// @Param        request body PublishSystemMessageRequest true "System message parameters"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  ErrorResponse
// @Router       /system/message [post]
func (c *CallController) PublishSystemMessage() {
	var req PublishSystemMessageRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "invalid request parameters", nil)
		return
	}

	callService := c.Container.GetService("call").(services.InterfaceCallService)

	err := callService.PublishSystemMessage(req.Type, map[string]interface{}{
		"level":   req.Level,
		"message": req.Message,
		"data":    req.Data,
	})
	if err != nil {
		response.FailWithMessage(c.Ctx, code.ErrUnknown, err.Error(), nil)
		return
	}

	response.Success(c.Ctx, gin.H{"published": true})
}
