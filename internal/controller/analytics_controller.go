package controller

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/service"
	"survey_analytics_backend/internal/util"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
	QualityService   *service.QualityService
	InsightService   *service.InsightService
	SurveyService    *service.SurveyService
}

func NewAnalyticsController(
	analyticsService *service.AnalyticsService,
	qualityService *service.QualityService,
	insightService *service.InsightService,
	surveyService *service.SurveyService,
) *AnalyticsController {
	return &AnalyticsController{
		AnalyticsService: analyticsService,
		QualityService:   qualityService,
		InsightService:   insightService,
		SurveyService:    surveyService,
	}
}

// authorizeSurvey 分析接口只对问卷归属者和管理员开放
func (c *AnalyticsController) authorizeSurvey(ctx *gin.Context) (uint, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return 0, false
	}

	surveyID, err := strconv.ParseUint(ctx.Param("surveyId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid survey id")
		return 0, false
	}

	if _, err := c.SurveyService.GetSurvey(uint(surveyID), user); err != nil {
		switch {
		case errors.Is(err, util.ErrSurveyNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return 0, false
	}
	return uint(surveyID), true
}

// parseFilter 从查询参数解析答卷过滤器，全部为空返回 nil 表示不过滤
func parseFilter(ctx *gin.Context) *model.ResponseFilter {
	filter := &model.ResponseFilter{
		IdentityType: ctx.Query("identityType"),
	}
	qID, _ := strconv.ParseUint(ctx.Query("filterQuestionId"), 10, 32)
	optID, _ := strconv.ParseUint(ctx.Query("filterOptionId"), 10, 32)
	if qID > 0 && optID > 0 {
		filter.QuestionFilter = &model.QuestionFilter{
			QuestionID: uint(qID),
			OptionID:   uint(optID),
		}
	}
	if filter.IdentityType == "" && filter.QuestionFilter == nil {
		return nil
	}
	return filter
}

// @Summary 问卷概览
// @Description 答卷总量、完成率、平均用时及按天提交趋势
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Param identityType query string false "身份过滤 anonymous|user|email"
// @Param filterQuestionId query int false "按题目答案过滤:题目ID"
// @Param filterOptionId query int false "按题目答案过滤:选项ID"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/overview [get]
func (c *AnalyticsController) GetOverview(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	overview, err := c.AnalyticsService.GetOverview(surveyID, parseFilter(ctx))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, overview)
}

// @Summary 题目统计
// @Description 每道题按题型给出选项分布、数值统计或文本样本
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/questions [get]
func (c *AnalyticsController) GetQuestionAnalysis(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	stats, err := c.AnalyticsService.GetQuestionAnalysis(surveyID, parseFilter(ctx))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 流失漏斗
// @Description 逐题到达与流失人数，附流失热点
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/dropoff [get]
func (c *AnalyticsController) GetDropOff(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	analysis, err := c.AnalyticsService.GetDropOff(surveyID, parseFilter(ctx))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, analysis)
}

// @Summary 细分维度目录
// @Description 可用于细分分析的身份维度与选择题清单
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/segments [get]
func (c *AnalyticsController) GetSegments(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	catalog, err := c.AnalyticsService.GetSegmentCatalog(surveyID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, catalog)
}

// @Summary 细分分析
// @Description 按身份维度分组的完成率，可叠加题目答案交叉过滤
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Param groupBy query string true "分组维度 email_domain|completion_status"
// @Param filterQuestionId query int false "交叉过滤:题目ID"
// @Param filterOptionId query int false "交叉过滤:选项ID"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/segment-analysis [get]
func (c *AnalyticsController) GetSegmentAnalysis(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	groupBy := ctx.Query("groupBy")
	if groupBy != "email_domain" && groupBy != "completion_status" {
		util.BadRequest(ctx, "groupBy must be email_domain or completion_status")
		return
	}

	var crossFilter *model.QuestionFilter
	if f := parseFilter(ctx); f != nil {
		crossFilter = f.QuestionFilter
	}

	stats, err := c.AnalyticsService.GetSegmentAnalysis(surveyID, groupBy, crossFilter)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 质量评分
// @Description 完成率、作答时长、问卷设计、文本质量、受访者评价五因子总分
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/quality [get]
func (c *AnalyticsController) GetQualityScore(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	score, err := c.QualityService.GetQualityScore(ctx.Request.Context(), surveyID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, score)
}

// @Summary AI 洞察
// @Description 大模型生成的问卷结论与建议，服务商不可用时返回降级结果
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Param force query bool false "跳过缓存重新生成"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/insights [get]
func (c *AnalyticsController) GetInsights(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	force := ctx.Query("force") == "true"
	insights, err := c.InsightService.GetAiInsights(ctx.Request.Context(), surveyID, force)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, insights)
}

type chatHistoryEntry struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

type chatRequestBody struct {
	Message  string             `json:"message" binding:"required"`
	History  []chatHistoryEntry `json:"history" binding:"dive"`
	Provider string             `json:"provider"`
}

// @Summary 数据问答
// @Description 基于该问卷统计数据回答自然语言问题，支持携带对话历史
// @Tags 分析
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param surveyId path int true "问卷ID"
// @Param request body chatRequestBody true "问题、对话历史与可选的优先服务商"
// @Success 200 {object} util.Response
// @Router /api/analytics/surveys/{surveyId}/chat [post]
func (c *AnalyticsController) ChatWithData(ctx *gin.Context) {
	surveyID, ok := c.authorizeSurvey(ctx)
	if !ok {
		return
	}

	var body chatRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	history := make([]service.ChatMessage, 0, len(body.History))
	for _, m := range body.History {
		history = append(history, service.ChatMessage{Role: m.Role, Content: m.Content})
	}

	answer, err := c.InsightService.ChatWithData(ctx.Request.Context(), surveyID, body.Message, history, body.Provider)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"answer": answer})
}
