package service

import (
	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/repository"
	"survey_analytics_backend/internal/util"
)

type FeedbackService struct {
	feedbackRepo *repository.FeedbackRepository
	responseRepo *repository.ResponseRepository
}

func NewFeedbackService(feedbackRepo *repository.FeedbackRepository, responseRepo *repository.ResponseRepository) *FeedbackService {
	return &FeedbackService{feedbackRepo: feedbackRepo, responseRepo: responseRepo}
}

type SubmitFeedbackInput struct {
	SurveyID   uint    `json:"surveyId" binding:"required"`
	ResponseID *uint   `json:"responseId"`
	Rating     int     `json:"rating" binding:"required,min=1,max=5"`
	Comment    *string `json:"comment"`
	Internal   bool    `json:"internal"`
}

// SubmitFeedback 受访者评价必须挂在本问卷的某次作答上，且一次作答只能评一次
func (s *FeedbackService) SubmitFeedback(input SubmitFeedbackInput) (*model.SurveyFeedback, error) {
	source := model.FeedbackRespondent
	if input.Internal {
		source = model.FeedbackInternal
	}

	if source == model.FeedbackRespondent {
		if input.ResponseID == nil {
			return nil, util.ErrFeedbackNeedResponse
		}
		response, err := s.responseRepo.FindByID(*input.ResponseID)
		if err != nil {
			return nil, err
		}
		if response.SurveyID != input.SurveyID {
			return nil, util.ErrResponseMismatch
		}
		exists, err := s.feedbackRepo.ExistsForResponse(*input.ResponseID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, util.ErrFeedbackExists
		}
	}

	feedback := &model.SurveyFeedback{
		SurveyID:   input.SurveyID,
		ResponseID: input.ResponseID,
		Rating:     input.Rating,
		Comment:    input.Comment,
		Source:     source,
	}
	if err := s.feedbackRepo.Create(feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

// GetFeedbackStats 评分分布与最近评论，内部评价一并计入
func (s *FeedbackService) GetFeedbackStats(surveyID uint) (*model.FeedbackStats, error) {
	feedback, err := s.feedbackRepo.ListBySurvey(surveyID)
	if err != nil {
		return nil, err
	}

	stats := &model.FeedbackStats{
		Count:        len(feedback),
		Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		Recent:       []model.FeedbackComment{},
	}
	if len(feedback) == 0 {
		return stats, nil
	}

	sum := 0
	for _, f := range feedback {
		sum += f.Rating
		if f.Rating >= 1 && f.Rating <= 5 {
			stats.Distribution[f.Rating]++
		}
	}
	stats.AvgRating = util.Round2(float64(sum) / float64(len(feedback)))

	// ListBySurvey 按创建时间倒序，前5条即最近评论
	for _, f := range feedback {
		if len(stats.Recent) >= 5 {
			break
		}
		if f.Comment == nil || *f.Comment == "" {
			continue
		}
		stats.Recent = append(stats.Recent, model.FeedbackComment{
			ID:        f.ID,
			Rating:    f.Rating,
			Comment:   *f.Comment,
			CreatedAt: f.CreatedAt,
		})
	}
	return stats, nil
}
