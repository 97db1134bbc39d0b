package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"survey_analytics_backend/internal/service"
	"survey_analytics_backend/internal/util"
)

type FeedbackController struct {
	FeedbackService *service.FeedbackService
	SurveyService   *service.SurveyService
}

func NewFeedbackController(feedbackService *service.FeedbackService, surveyService *service.SurveyService) *FeedbackController {
	return &FeedbackController{FeedbackService: feedbackService, SurveyService: surveyService}
}

// @Summary 提交问卷评价
// @Description 受访者对问卷体验的评分与评论，不需要登录
// @Tags 评价
// @Accept json
// @Produce json
// @Param request body service.SubmitFeedbackInput true "评价内容"
// @Success 201 {object} util.Response
// @Router /api/public/feedback [post]
func (c *FeedbackController) Submit(ctx *gin.Context) {
	var input service.SubmitFeedbackInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	// 公开入口不允许伪造内部评价
	input.Internal = false

	feedback, err := c.FeedbackService.SubmitFeedback(input)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrFeedbackExists):
			util.Error(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, util.ErrFeedbackNeedResponse), errors.Is(err, util.ErrResponseMismatch):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, util.ErrResponseNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, feedback)
}

// @Summary 评价统计
// @Tags 评价
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {object} util.Response
// @Router /api/surveys/{surveyId}/feedback [get]
func (c *FeedbackController) GetStats(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	surveyID, err := strconv.ParseUint(ctx.Param("surveyId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid survey id")
		return
	}

	if _, err := c.SurveyService.GetSurvey(uint(surveyID), user); err != nil {
		handleSurveyError(ctx, err)
		return
	}

	stats, err := c.FeedbackService.GetFeedbackStats(uint(surveyID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
