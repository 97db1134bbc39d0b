package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/service"
	"survey_analytics_backend/internal/util"
)

type SurveyController struct {
	SurveyService *service.SurveyService
}

func NewSurveyController(surveyService *service.SurveyService) *SurveyController {
	return &SurveyController{SurveyService: surveyService}
}

func surveyIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("surveyId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid survey id")
		return 0, false
	}
	return uint(id), true
}

func handleSurveyError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSurveyNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrSurveyNotActive):
		util.Error(ctx, http.StatusGone, "Survey is not accepting responses")
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary 创建问卷
// @Tags 问卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateSurveyInput true "问卷定义"
// @Success 201 {object} util.Response
// @Router /api/surveys [post]
func (c *SurveyController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var input service.CreateSurveyInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	survey, err := c.SurveyService.CreateSurvey(user.UserID, input)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, survey)
}

// @Summary 问卷列表
// @Tags 问卷
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/surveys [get]
func (c *SurveyController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	surveys, total, err := c.SurveyService.ListSurveys(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: surveys, Total: total, Page: page, Limit: limit})
}

// @Summary 问卷详情
// @Tags 问卷
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {object} util.Response
// @Router /api/surveys/{surveyId} [get]
func (c *SurveyController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	surveyID, ok := surveyIDParam(ctx)
	if !ok {
		return
	}

	survey, err := c.SurveyService.GetSurvey(surveyID, user)
	if err != nil {
		handleSurveyError(ctx, err)
		return
	}
	util.Success(ctx, survey)
}

type updateStatusRequest struct {
	Status model.SurveyStatus `json:"status" binding:"required,oneof=draft active closed"`
}

// @Summary 更新问卷状态
// @Tags 问卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Param request body updateStatusRequest true "目标状态"
// @Success 200 {object} util.Response
// @Router /api/surveys/{surveyId}/status [put]
func (c *SurveyController) UpdateStatus(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	surveyID, ok := surveyIDParam(ctx)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.SurveyService.UpdateStatus(surveyID, user, req.Status); err != nil {
		handleSurveyError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": req.Status})
}

// @Summary 删除问卷
// @Tags 问卷
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {object} util.Response
// @Router /api/surveys/{surveyId} [delete]
func (c *SurveyController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	surveyID, ok := surveyIDParam(ctx)
	if !ok {
		return
	}

	if err := c.SurveyService.DeleteSurvey(surveyID, user); err != nil {
		handleSurveyError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 公开获取问卷
// @Description 投放链接入口，不需要登录
// @Tags 问卷
// @Produce json
// @Param token path string true "问卷公开令牌"
// @Success 200 {object} util.Response
// @Router /api/public/surveys/{token} [get]
func (c *SurveyController) GetPublic(ctx *gin.Context) {
	survey, err := c.SurveyService.GetPublicSurvey(ctx.Param("token"))
	if err != nil {
		handleSurveyError(ctx, err)
		return
	}
	util.Success(ctx, survey)
}

// @Summary 提交答卷
// @Description 公开提交入口，登录用户自动关联身份
// @Tags 问卷
// @Accept json
// @Produce json
// @Param token path string true "问卷公开令牌"
// @Param request body service.SubmitResponseInput true "答卷内容"
// @Success 201 {object} util.Response
// @Router /api/public/surveys/{token}/responses [post]
func (c *SurveyController) SubmitResponse(ctx *gin.Context) {
	var input service.SubmitResponseInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	// 登录与否都允许提交，有凭证就带上身份
	claims := util.GetUserFromContext(ctx)

	response, err := c.SurveyService.SubmitResponse(ctx.Param("token"), input, claims)
	if err != nil {
		if errors.Is(err, util.ErrRequiredQuestion) || errors.Is(err, util.ErrQuestionNotFound) {
			util.BadRequest(ctx, err.Error())
			return
		}
		handleSurveyError(ctx, err)
		return
	}
	util.Created(ctx, response)
}

// @Summary 导出答卷 CSV
// @Tags 问卷
// @Produce text/csv
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {string} string "CSV 文件"
// @Router /api/surveys/{surveyId}/export [get]
func (c *SurveyController) ExportCSV(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	surveyID, ok := surveyIDParam(ctx)
	if !ok {
		return
	}

	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=survey_%d_responses.csv", surveyID))

	if err := c.SurveyService.ExportResponsesCSV(surveyID, user, ctx.Writer); err != nil {
		handleSurveyError(ctx, err)
		return
	}
}
