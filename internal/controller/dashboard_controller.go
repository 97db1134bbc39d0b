package controller

import (
	"github.com/gin-gonic/gin"

	"survey_analytics_backend/internal/service"
	"survey_analytics_backend/internal/util"
)

type DashboardController struct {
	DashboardService *service.DashboardService
	SurveyService    *service.SurveyService
}

func NewDashboardController(dashboardService *service.DashboardService, surveyService *service.SurveyService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService, SurveyService: surveyService}
}

// @Summary 创建者工作台
// @Description 当前用户各状态问卷数量
// @Tags 看板
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/dashboard/creator [get]
func (c *DashboardController) GetCreatorDashboard(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	dashboard, err := c.SurveyService.GetCreatorDashboard(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}

// @Summary 管理端看板
// @Description 平台总量、角色分布、答卷最多的问卷及近7天提交趋势
// @Tags 看板
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/dashboard/admin [get]
func (c *DashboardController) GetAdminDashboard(ctx *gin.Context) {
	dashboard, err := c.DashboardService.GetAdminDashboard()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}
