package controllers

import (
	"errors"
	"strconv"
	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/domain/services/container"
	"teleconsult-http-service/internal/error/code"
	"teleconsult-http-service/internal/error/response"
	"time"

	"github.com/gin-gonic/gin"
)

// InterfaceCallRecordController defines the call history controller interface
type InterfaceCallRecordController interface {
	GetCallRecords()
	GetCallRecord()
	GetMyCallRecords()
	GetMissedCalls()
	GetStatistics()
}

// CallRecordController handles call history requests
type CallRecordController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewCallRecordController creates a new call history controller
func NewCallRecordController(ctx *gin.Context, container *container.ServiceContainer) InterfaceCallRecordController {
	return &CallRecordController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandleCallRecordFunc returns a gin handler for call history requests
func HandleCallRecordFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewCallRecordController(ctx, container)

		switch method {
		case "getCallRecords":
			controller.GetCallRecords()
		case "getCallRecord":
			controller.GetCallRecord()
		case "getMyCallRecords":
			controller.GetMyCallRecords()
		case "getMissedCalls":
			controller.GetMissedCalls()
		case "getStatistics":
			controller.GetStatistics()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

func (c *CallRecordController) recordService() services.InterfaceCallRecordService {
	return c.Container.GetService("call_record").(services.InterfaceCallRecordService)
}

func (c *CallRecordController) pageParams() (int, int) {
	page, _ := strconv.Atoi(c.Ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Ctx.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// GetCallRecords lists all call records
// @Summary      List call records
// @Description  Page through all call records with an optional status filter. Admin only.
// @Tags         CallRecords
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        status query string false "Filter by status"
// @Success      200  {object}  response.Response
// @Router       /call-records [get]
func (c *CallRecordController) GetCallRecords() {
	page, pageSize := c.pageParams()
	status := c.Ctx.Query("status")

	calls, total, err := c.recordService().GetAllCalls(page, pageSize, status)
	if err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{
		"calls":     calls,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetCallRecord returns one call record
// @Summary      Get a call record
// @Tags         CallRecords
// @Produce      json
// @Param        id path string true "Call ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  ErrorResponse
// @Router       /call-records/{id} [get]
func (c *CallRecordController) GetCallRecord() {
	call, err := c.recordService().GetCallByID(c.Ctx.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrCallNotFound) {
			response.Fail(c.Ctx, code.ErrCallNotFound, nil)
			return
		}
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, call)
}

// GetMyCallRecords lists the acting user's call history
// @Summary      Own call history
// @Description  Calls the acting user took part in, as caller or recipient.
// @Tags         CallRecords
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200  {object}  response.Response
// @Router       /call-records/mine [get]
func (c *CallRecordController) GetMyCallRecords() {
	uid, exists := c.Ctx.Get("uid")
	if !exists {
		response.Unauthorized(c.Ctx)
		return
	}

	page, pageSize := c.pageParams()

	calls, total, err := c.recordService().GetCallsByUser(uid.(string), page, pageSize)
	if err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{
		"calls":     calls,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetMissedCalls lists calls that timed out ringing the acting user
// @Summary      Own missed calls
// @Tags         CallRecords
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200  {object}  response.Response
// @Router       /call-records/missed [get]
func (c *CallRecordController) GetMissedCalls() {
	uid, exists := c.Ctx.Get("uid")
	if !exists {
		response.Unauthorized(c.Ctx)
		return
	}

	page, pageSize := c.pageParams()

	calls, total, err := c.recordService().GetMissedCalls(uid.(string), page, pageSize)
	if err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{
		"calls":     calls,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetStatistics aggregates call outcomes
// @Summary      Call statistics
// @Description  Aggregate call outcomes, optionally bounded by a number of days back. Admin only.
// @Tags         CallRecords
// @Produce      json
// @Param        days query int false "Days back to include, 0 for all time" default(0)
// @Success      200  {object}  response.Response
// @Router       /call-records/statistics [get]
func (c *CallRecordController) GetStatistics() {
	var since *time.Time
	if days, err := strconv.Atoi(c.Ctx.DefaultQuery("days", "0")); err == nil && days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		since = &cutoff
	}

	statistics, err := c.recordService().GetCallStatistics(since)
	if err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, statistics)
}
