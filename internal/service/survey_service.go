package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/repository"
	"survey_analytics_backend/internal/util"
)

type SurveyService struct {
	surveyRepo   *repository.SurveyRepository
	responseRepo *repository.ResponseRepository
}

func NewSurveyService(surveyRepo *repository.SurveyRepository, responseRepo *repository.ResponseRepository) *SurveyService {
	return &SurveyService{surveyRepo: surveyRepo, responseRepo: responseRepo}
}

type QuestionOptionInput struct {
	Text         string `json:"text" binding:"required"`
	DisplayOrder int    `json:"displayOrder"`
}

type QuestionInput struct {
	Text         string                `json:"text" binding:"required"`
	Type         model.QuestionType    `json:"type" binding:"required"`
	DisplayOrder int                   `json:"displayOrder"`
	Required     bool                  `json:"required"`
	Options      []QuestionOptionInput `json:"options"`
}

type CreateSurveyInput struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	ClosesAt    *time.Time      `json:"closesAt"`
	Questions   []QuestionInput `json:"questions" binding:"required,min=1"`
}

func (s *SurveyService) CreateSurvey(userID uint, input CreateSurveyInput) (*model.Survey, error) {
	survey := &model.Survey{
		Title:       input.Title,
		Description: input.Description,
		Status:      model.SurveyDraft,
		CreatedBy:   userID,
		PublicToken: model.GenerateToken(),
		ClosesAt:    input.ClosesAt,
	}
	for i, q := range input.Questions {
		order := q.DisplayOrder
		if order == 0 {
			order = i + 1
		}
		question := model.Question{
			Text:         q.Text,
			Type:         q.Type,
			DisplayOrder: order,
			Required:     q.Required,
		}
		for j, opt := range q.Options {
			optOrder := opt.DisplayOrder
			if optOrder == 0 {
				optOrder = j + 1
			}
			question.Options = append(question.Options, model.QuestionOption{
				Text:         opt.Text,
				DisplayOrder: optOrder,
			})
		}
		survey.Questions = append(survey.Questions, question)
	}

	if err := s.surveyRepo.Create(survey); err != nil {
		return nil, err
	}
	return survey, nil
}

// GetSurvey 创建者取自己的问卷，管理员不受归属限制
func (s *SurveyService) GetSurvey(surveyID uint, claims *util.Claims) (*model.Survey, error) {
	survey, err := s.surveyRepo.FindByID(surveyID)
	if err != nil {
		return nil, err
	}
	if claims.Role != model.Admin && survey.CreatedBy != claims.UserID {
		return nil, util.ErrPermissionDenied
	}
	return survey, nil
}

// GetPublicSurvey 投放链接入口，只有 active 状态且未过截止时间的问卷可见
func (s *SurveyService) GetPublicSurvey(token string) (*model.Survey, error) {
	survey, err := s.surveyRepo.FindByPublicToken(token)
	if err != nil {
		return nil, err
	}
	if survey.Status != model.SurveyActive {
		return nil, util.ErrSurveyNotActive
	}
	if survey.ClosesAt != nil && time.Now().After(*survey.ClosesAt) {
		return nil, util.ErrSurveyNotActive
	}
	return survey, nil
}

func (s *SurveyService) ListSurveys(userID uint, page, limit int) ([]model.Survey, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.surveyRepo.ListByCreator(userID, page, limit)
}

func (s *SurveyService) UpdateStatus(surveyID uint, claims *util.Claims, status model.SurveyStatus) error {
	if _, err := s.GetSurvey(surveyID, claims); err != nil {
		return err
	}
	return s.surveyRepo.UpdateStatus(surveyID, status)
}

func (s *SurveyService) DeleteSurvey(surveyID uint, claims *util.Claims) error {
	if _, err := s.GetSurvey(surveyID, claims); err != nil {
		return err
	}
	return s.surveyRepo.Delete(surveyID)
}

type AnswerInput struct {
	QuestionID    uint     `json:"questionId" binding:"required"`
	OptionID      *uint    `json:"optionId"`
	OptionIDs     []uint   `json:"optionIds"` // 多选题
	TextAnswer    *string  `json:"textAnswer"`
	NumericAnswer *float64 `json:"numericAnswer"`
}

type SubmitResponseInput struct {
	Answers          []AnswerInput `json:"answers"`
	Completed        bool          `json:"completed"`
	RespondentEmail  *string       `json:"respondentEmail"`
	IsAnonymous      bool          `json:"isAnonymous"`
	TimeTakenSeconds *int          `json:"timeTakenSeconds"`
	StartedAt        *time.Time    `json:"startedAt"`
}

// SubmitResponse 公开提交入口。claims 可以为 nil（匿名或纯邮箱受访者）
func (s *SurveyService) SubmitResponse(token string, input SubmitResponseInput, claims *util.Claims) (*model.SurveyResponse, error) {
	survey, err := s.GetPublicSurvey(token)
	if err != nil {
		return nil, err
	}

	if input.Completed {
		if err := checkRequiredAnswered(survey.Questions, input.Answers); err != nil {
			return nil, err
		}
	}

	response := &model.SurveyResponse{
		SurveyID:         survey.ID,
		Status:           model.ResponseStarted,
		IsAnonymous:      input.IsAnonymous,
		TimeTakenSeconds: input.TimeTakenSeconds,
	}
	if claims != nil {
		response.RespondentID = &claims.UserID
	} else if !input.IsAnonymous {
		response.RespondentEmail = input.RespondentEmail
	}
	if input.Completed {
		response.Status = model.ResponseCompleted
		now := time.Now()
		response.CompletedAt = &now
		// 前端没报用时就按开始时间补算
		if response.TimeTakenSeconds == nil && input.StartedAt != nil && now.After(*input.StartedAt) {
			taken := int(now.Sub(*input.StartedAt).Seconds())
			response.TimeTakenSeconds = &taken
		}
	}

	questionByID := make(map[uint]model.Question, len(survey.Questions))
	for _, q := range survey.Questions {
		questionByID[q.ID] = q
	}
	for _, a := range input.Answers {
		q, ok := questionByID[a.QuestionID]
		if !ok {
			return nil, util.ErrQuestionNotFound
		}
		response.Answers = append(response.Answers, buildAnswers(q, a)...)
	}

	if err := s.responseRepo.Create(response); err != nil {
		return nil, err
	}
	return response, nil
}

func checkRequiredAnswered(questions []model.Question, answers []AnswerInput) error {
	answered := make(map[uint]bool, len(answers))
	for _, a := range answers {
		if a.OptionID != nil || len(a.OptionIDs) > 0 ||
			(a.TextAnswer != nil && *a.TextAnswer != "") || a.NumericAnswer != nil {
			answered[a.QuestionID] = true
		}
	}
	for _, q := range questions {
		if q.Required && !answered[q.ID] {
			return fmt.Errorf("question %d is required: %w", q.ID, util.ErrRequiredQuestion)
		}
	}
	return nil
}

// buildAnswers 多选题展开为多行，其余题型一行
func buildAnswers(q model.Question, a AnswerInput) []model.Answer {
	if len(a.OptionIDs) > 0 {
		answers := make([]model.Answer, 0, len(a.OptionIDs))
		for _, optID := range a.OptionIDs {
			id := optID
			answers = append(answers, model.Answer{QuestionID: q.ID, OptionID: &id})
		}
		return answers
	}
	return []model.Answer{{
		QuestionID:    q.ID,
		OptionID:      a.OptionID,
		TextAnswer:    a.TextAnswer,
		NumericAnswer: a.NumericAnswer,
	}}
}

// ExportResponsesCSV 一行一份答卷，多选题答案在单元格内用分号拼接
func (s *SurveyService) ExportResponsesCSV(surveyID uint, claims *util.Claims, w io.Writer) error {
	survey, err := s.GetSurvey(surveyID, claims)
	if err != nil {
		return err
	}
	responses, err := s.responseRepo.ListForExport(surveyID)
	if err != nil {
		return err
	}

	optionText := make(map[uint]string)
	for _, q := range survey.Questions {
		for _, opt := range q.Options {
			optionText[opt.ID] = opt.Text
		}
	}

	writer := csv.NewWriter(w)
	header := []string{"response_id", "status", "respondent", "submitted_at", "time_taken_seconds"}
	for _, q := range survey.Questions {
		header = append(header, q.Text)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range responses {
		row := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			string(r.Status),
			exportRespondent(r),
			r.CreatedAt.UTC().Format(time.RFC3339),
			exportTimeTaken(r),
		}
		byQuestion := make(map[uint][]string)
		for _, a := range r.Answers {
			byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], exportAnswer(a, optionText))
		}
		for _, q := range survey.Questions {
			cell := ""
			for i, v := range byQuestion[q.ID] {
				if i > 0 {
					cell += "; "
				}
				cell += v
			}
			row = append(row, cell)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func exportRespondent(r model.SurveyResponse) string {
	switch {
	case r.IsAnonymous:
		return "anonymous"
	case r.Respondent != nil && r.Respondent.Email != "":
		return r.Respondent.Email
	case r.RespondentEmail != nil:
		return *r.RespondentEmail
	default:
		return "unknown"
	}
}

func exportTimeTaken(r model.SurveyResponse) string {
	if r.TimeTakenSeconds == nil {
		return ""
	}
	return strconv.Itoa(*r.TimeTakenSeconds)
}

func exportAnswer(a model.Answer, optionText map[uint]string) string {
	if a.OptionID != nil {
		if text, ok := optionText[*a.OptionID]; ok {
			return text
		}
		return fmt.Sprintf("Option %d", *a.OptionID)
	}
	if a.NumericAnswer != nil {
		return strconv.FormatFloat(*a.NumericAnswer, 'f', -1, 64)
	}
	if a.TextAnswer != nil {
		return *a.TextAnswer
	}
	return ""
}

// GetCreatorDashboard 创建者工作台的问卷状态计数
func (s *SurveyService) GetCreatorDashboard(userID uint) (*model.CreatorDashboard, error) {
	dashboard := &model.CreatorDashboard{}

	counts := []struct {
		status model.SurveyStatus
		target *int64
	}{
		{model.SurveyActive, &dashboard.ActiveSurveys},
		{model.SurveyDraft, &dashboard.DraftSurveys},
		{model.SurveyClosed, &dashboard.ClosedSurveys},
	}
	for _, c := range counts {
		n, err := s.surveyRepo.CountByCreatorAndStatus(userID, c.status)
		if err != nil {
			return nil, err
		}
		*c.target = n
	}
	dashboard.TotalSurveys = dashboard.ActiveSurveys + dashboard.DraftSurveys + dashboard.ClosedSurveys
	return dashboard, nil
}
