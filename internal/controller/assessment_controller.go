package controller

import (
	"assessment_engine/internal/model"
	"assessment_engine/internal/service"
	"assessment_engine/internal/util"
	"fmt"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// StartRequest 开始作答请求
type StartRequest struct {
	AssessmentID uint `json:"assessment_id" binding:"required" example:"1"`
}

// RecordAnswerRequest 记录单题答案；answer 为 null 表示未作答
type RecordAnswerRequest struct {
	AttemptID     string  `json:"attempt_id" example:"5f1c..."`
	QuestionIndex *int    `json:"question_index" binding:"required,min=0" example:"0"`
	Answer        *string `json:"answer" example:"B"`
}

// SubmitRequest 交卷请求；answers 与已记录答案合并
type SubmitRequest struct {
	AttemptID        string        `json:"attempt_id" example:"5f1c..."`
	Answers          model.Answers `json:"answers" swaggertype:"object"`
	TimeSpentSeconds int           `json:"time_spent_seconds" binding:"min=0" example:"300"`
}

// PreviewRequest 试算分数请求
type PreviewRequest struct {
	Answers model.Answers `json:"answers" swaggertype:"object"`
}

func callerFrom(c *gin.Context) (service.Caller, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return service.Caller{}, false
	}
	return service.Caller{UserID: claims.UserID, Role: claims.Role, Email: claims.Email}, true
}

func invalidPayload(err error) error {
	return fmt.Errorf("%w: %v", util.ErrInvalidAnswerPayload, err)
}

// Start godoc
// @Summary 开始或恢复作答
// @Description 存在进行中的作答时原样返回（不计入次数）；否则在次数允许时新建一次作答。返回的题目不含答案与解析
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=service.StartResult}
// @Failure 403 {object} util.Response "permission_denied"
// @Failure 404 {object} util.Response "assessment_not_found"
// @Failure 409 {object} util.Response "max_attempts_exceeded"
// @Router /api/assessments/{id}/start [post]
func (ctrl *AssessmentController) Start(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		util.Fail(c, util.ErrAssessmentNotFound)
		return
	}
	ctrl.start(c, caller, id)
}

// StartByBody godoc
// @Summary 开始或恢复作答（请求体形式）
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body StartRequest true "开始作答请求"
// @Success 200 {object} util.Response{data=service.StartResult}
// @Router /api/assessment/start [post]
func (ctrl *AssessmentController) StartByBody(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Fail(c, invalidPayload(err))
		return
	}
	ctrl.start(c, caller, req.AssessmentID)
}

func (ctrl *AssessmentController) start(c *gin.Context, caller service.Caller, assessmentID uint) {
	res, err := ctrl.Service.Start(c.Request.Context(), caller, assessmentID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, res)
}

// RecordAnswer godoc
// @Summary 记录单题答案
// @Description 幂等；重复提交相同答案不产生变化
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param request body RecordAnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "invalid_answer_payload"
// @Failure 409 {object} util.Response "attempt_already_finalized"
// @Router /api/attempts/{id}/answers [post]
func (ctrl *AssessmentController) RecordAnswer(c *gin.Context) {
	ctrl.recordAnswer(c, c.Param("id"))
}

// RecordAnswerByBody godoc
// @Summary 记录单题答案（请求体形式）
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body RecordAnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/assessment/record_answer [post]
func (ctrl *AssessmentController) RecordAnswerByBody(c *gin.Context) {
	ctrl.recordAnswer(c, "")
}

func (ctrl *AssessmentController) recordAnswer(c *gin.Context, attemptID string) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	var req RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Fail(c, invalidPayload(err))
		return
	}
	if attemptID == "" {
		attemptID = req.AttemptID
	}
	if attemptID == "" {
		util.Fail(c, util.ErrAttemptNotFound)
		return
	}

	if err := ctrl.Service.RecordAnswer(c.Request.Context(), caller, attemptID, *req.QuestionIndex, req.Answer); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, gin.H{"ok": true})
}

// Submit godoc
// @Summary 交卷
// @Description 合并答案并判分，每次作答只能交卷一次
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param request body SubmitRequest false "答案快照与用时"
// @Success 200 {object} util.Response{data=service.SubmitResult}
// @Failure 400 {object} util.Response "invalid_answer_payload"
// @Failure 403 {object} util.Response "attempt_not_owned"
// @Failure 409 {object} util.Response "attempt_already_finalized"
// @Router /api/attempts/{id}/submit [post]
func (ctrl *AssessmentController) Submit(c *gin.Context) {
	ctrl.submit(c, c.Param("id"))
}

// SubmitByBody godoc
// @Summary 交卷（请求体形式）
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SubmitRequest true "交卷请求"
// @Success 200 {object} util.Response{data=service.SubmitResult}
// @Router /api/assessment/submit [post]
func (ctrl *AssessmentController) SubmitByBody(c *gin.Context) {
	ctrl.submit(c, "")
}

func (ctrl *AssessmentController) submit(c *gin.Context, attemptID string) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	var req SubmitRequest
	// 空请求体视为空快照
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Fail(c, invalidPayload(err))
			return
		}
	}
	if attemptID == "" {
		attemptID = req.AttemptID
	}
	if attemptID == "" {
		util.Fail(c, util.ErrAttemptNotFound)
		return
	}

	res, err := ctrl.Service.Submit(c.Request.Context(), caller, attemptID, req.Answers, req.TimeSpentSeconds)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, res)
}

// GetAttempt godoc
// @Summary 获取作答详情
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 404 {object} util.Response "attempt_not_found"
// @Router /api/attempts/{id} [get]
func (ctrl *AssessmentController) GetAttempt(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	attempt, err := ctrl.Service.GetAttempt(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, attempt)
}

// ListAttempts godoc
// @Summary 获取我的作答记录
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=[]model.Attempt}
// @Router /api/assessments/{id}/attempts [get]
func (ctrl *AssessmentController) ListAttempts(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		util.Fail(c, util.ErrAssessmentNotFound)
		return
	}
	attempts, err := ctrl.Service.ListAttempts(c.Request.Context(), caller, id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, attempts)
}

// PreviewScore godoc
// @Summary 试算分数
// @Description 不保存任何作答，需要 preview_score 权限
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测评ID"
// @Param request body PreviewRequest true "答案"
// @Success 200 {object} util.Response{data=service.PreviewResult}
// @Failure 403 {object} util.Response "permission_denied"
// @Router /api/assessments/{id}/preview [post]
func (ctrl *AssessmentController) PreviewScore(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		util.Fail(c, util.ErrAssessmentNotFound)
		return
	}
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Fail(c, invalidPayload(err))
		return
	}
	res, err := ctrl.Service.PreviewScore(c.Request.Context(), caller, id, req.Answers)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, res)
}
