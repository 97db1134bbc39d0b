package repository

import (
	"errors"
	"survey_analytics_backend/internal/model"

	"gorm.io/gorm"
)

type FeedbackRepository struct {
	DB *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{DB: db}
}

func (r *FeedbackRepository) Create(feedback *model.SurveyFeedback) error {
	return r.DB.Create(feedback).Error
}

func (r *FeedbackRepository) ExistsForResponse(responseID uint) (bool, error) {
	var feedback model.SurveyFeedback
	err := r.DB.Where("response_id = ?", responseID).First(&feedback).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *FeedbackRepository) ListBySurvey(surveyID uint) ([]model.SurveyFeedback, error) {
	var feedbacks []model.SurveyFeedback
	err := r.DB.Where("survey_id = ?", surveyID).Order("created_at DESC").Find(&feedbacks).Error
	if err != nil {
		return nil, err
	}
	return feedbacks, nil
}
