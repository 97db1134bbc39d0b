package service

import (
	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/repository"
)

// DashboardService 管理端看板，直接走聚合查询
type DashboardService struct {
	analyticsRepo *repository.AnalyticsRepository
}

func NewDashboardService(analyticsRepo *repository.AnalyticsRepository) *DashboardService {
	return &DashboardService{analyticsRepo: analyticsRepo}
}

func (s *DashboardService) GetAdminDashboard() (*model.AdminDashboard, error) {
	return s.analyticsRepo.GetAdminDashboardData()
}
