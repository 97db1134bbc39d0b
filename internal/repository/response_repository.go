package repository

import (
	"errors"
	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/util"

	"gorm.io/gorm"
)

type ResponseRepository struct {
	DB *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{DB: db}
}

// Create 作答和答案行在一个事务里落库
func (r *ResponseRepository) Create(response *model.SurveyResponse) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(response).Error
	})
}

func (r *ResponseRepository) FindByID(id uint) (*model.SurveyResponse, error) {
	var response model.SurveyResponse
	err := r.DB.Preload("Answers").First(&response, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrResponseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// ListForExport 导出用，全量（含幽灵会话），按提交时间排序
func (r *ResponseRepository) ListForExport(surveyID uint) ([]model.SurveyResponse, error) {
	var responses []model.SurveyResponse
	err := r.DB.
		Preload("Answers").
		Where("survey_id = ?", surveyID).
		Order("created_at ASC").
		Find(&responses).Error
	if err != nil {
		return nil, err
	}
	return responses, nil
}
