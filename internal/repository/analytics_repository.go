package repository

import (
	"errors"
	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

// 分析口径的"有效作答"：已完成，或者至少提交过一条答案。
// 零答案的 started 会话（打开就走的幽灵会话）不进入统计。
const eligibleResponseCond = "(survey_responses.status = ? OR EXISTS (" +
	"SELECT 1 FROM answers WHERE answers.survey_response_id = survey_responses.id AND answers.deleted_at IS NULL))"

type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

func (r *AnalyticsRepository) GetSurvey(surveyID uint) (*model.Survey, error) {
	var survey model.Survey
	err := r.DB.First(&survey, surveyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSurveyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &survey, nil
}

// ListQuestions 按展示顺序返回问卷题目，选项按显示顺序预加载
func (r *AnalyticsRepository) ListQuestions(surveyID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.display_order ASC")
		}).
		Where("survey_id = ?", surveyID).
		Order("display_order ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// ListResponses 返回有效作答（含答案），ids 非 nil 时只取其中的
func (r *AnalyticsRepository) ListResponses(surveyID uint, ids []uint) ([]model.SurveyResponse, error) {
	q := r.DB.
		Preload("Answers").
		Preload("Respondent").
		Where("survey_id = ?", surveyID).
		Where(eligibleResponseCond, model.ResponseCompleted)

	if ids != nil {
		if len(ids) == 0 {
			return []model.SurveyResponse{}, nil
		}
		q = q.Where("survey_responses.id IN ?", ids)
	}

	var responses []model.SurveyResponse
	if err := q.Find(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}

// ResolveResponseIDs 解析过滤条件成作答ID集合。filter 为 nil 返回 nil（表示不限制）。
// 身份过滤与题目交叉过滤是交集关系。
func (r *AnalyticsRepository) ResolveResponseIDs(surveyID uint, filter *model.ResponseFilter) ([]uint, error) {
	if filter == nil {
		return nil, nil
	}

	q := r.DB.Model(&model.SurveyResponse{}).Where("survey_id = ?", surveyID)

	switch filter.IdentityType {
	case "anonymous":
		q = q.Where("is_anonymous = ?", true)
	case "user":
		q = q.Where("respondent_id IS NOT NULL")
	case "email":
		// 仅邮箱识别的访客，不含注册用户
		q = q.Where("respondent_email IS NOT NULL AND respondent_id IS NULL")
	}

	var ids []uint
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	if filter.QuestionFilter != nil && filter.QuestionFilter.QuestionID != 0 && filter.QuestionFilter.OptionID != 0 {
		matching, err := r.ResponseIDsByAnswer(surveyID, filter.QuestionFilter.QuestionID, filter.QuestionFilter.OptionID)
		if err != nil {
			return nil, err
		}
		matchSet := make(map[uint]bool, len(matching))
		for _, id := range matching {
			matchSet[id] = true
		}
		intersected := make([]uint, 0, len(ids))
		for _, id := range ids {
			if matchSet[id] {
				intersected = append(intersected, id)
			}
		}
		ids = intersected
	}

	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

// ResponseIDsByAnswer 交叉过滤：选择了指定题目指定选项的作答
func (r *AnalyticsRepository) ResponseIDsByAnswer(surveyID, questionID, optionID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Answer{}).
		Joins("JOIN survey_responses ON survey_responses.id = answers.survey_response_id").
		Where("survey_responses.survey_id = ?", surveyID).
		Where("answers.question_id = ? AND answers.option_id = ?", questionID, optionID).
		Pluck("answers.survey_response_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

// ListTextAnswers 全问卷范围的自由文本答案（质量评分用）
func (r *AnalyticsRepository) ListTextAnswers(surveyID uint) ([]string, error) {
	var texts []string
	err := r.DB.Model(&model.Answer{}).
		Joins("JOIN survey_responses ON survey_responses.id = answers.survey_response_id").
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("survey_responses.survey_id = ?", surveyID).
		Where("answers.text_answer IS NOT NULL").
		Where("questions.type IN ?", []model.QuestionType{model.TextInput, model.OpenEnded}).
		Pluck("answers.text_answer", &texts).Error
	if err != nil {
		return nil, err
	}
	return texts, nil
}

func (r *AnalyticsRepository) ListRespondentFeedback(surveyID uint) ([]model.SurveyFeedback, error) {
	var feedbacks []model.SurveyFeedback
	err := r.DB.
		Where("survey_id = ? AND source = ?", surveyID, model.FeedbackRespondent).
		Find(&feedbacks).Error
	if err != nil {
		return nil, err
	}
	return feedbacks, nil
}

func (r *AnalyticsRepository) RecentFeedbackComments(surveyID uint, limit int) ([]model.SurveyFeedback, error) {
	var feedbacks []model.SurveyFeedback
	err := r.DB.
		Where("survey_id = ?", surveyID).
		Where("comment IS NOT NULL AND comment != ''").
		Order("created_at DESC").
		Limit(limit).
		Find(&feedbacks).Error
	if err != nil {
		return nil, err
	}
	return feedbacks, nil
}

// GetAdminDashboardData 平台总览，活跃曲线补齐最近7天的空档
func (r *AnalyticsRepository) GetAdminDashboardData() (*model.AdminDashboard, error) {
	totals := map[string]int64{}

	var totalUsers, totalSurveys, activeSurveys, totalResponses int64
	if err := r.DB.Model(&model.User{}).Count(&totalUsers).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Survey{}).Count(&totalSurveys).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Survey{}).Where("status = ?", model.SurveyActive).Count(&activeSurveys).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.SurveyResponse{}).Count(&totalResponses).Error; err != nil {
		return nil, err
	}
	totals["totalUsers"] = totalUsers
	totals["totalSurveys"] = totalSurveys
	totals["activeSurveys"] = activeSurveys
	totals["totalResponses"] = totalResponses

	type roleRow struct {
		Role  string
		Count int64
	}
	var roleRows []roleRow
	if err := r.DB.Model(&model.User{}).
		Select("role, COUNT(id) as count").
		Group("role").
		Scan(&roleRows).Error; err != nil {
		return nil, err
	}
	roleStats := map[string]int64{}
	for _, row := range roleRows {
		roleStats[row.Role] = row.Count
	}

	type surveyRow struct {
		Title         string
		ResponseCount int
	}
	var surveyRows []surveyRow
	if err := r.DB.Model(&model.Survey{}).
		Select("surveys.title, (SELECT COUNT(*) FROM survey_responses WHERE survey_responses.survey_id = surveys.id) as response_count").
		Order("response_count DESC").
		Limit(5).
		Scan(&surveyRows).Error; err != nil {
		return nil, err
	}
	perSurvey := model.ChartSeries{}
	for _, row := range surveyRows {
		perSurvey.Labels = append(perSurvey.Labels, row.Title)
		perSurvey.Data = append(perSurvey.Data, row.ResponseCount)
	}

	type dayRow struct {
		Date  string
		Count int
	}
	sevenDaysAgo := time.Now().AddDate(0, 0, -7)
	var dayRows []dayRow
	if err := r.DB.Model(&model.SurveyResponse{}).
		Select("DATE(created_at) as date, COUNT(id) as count").
		Where("created_at >= ?", sevenDaysAgo).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&dayRows).Error; err != nil {
		return nil, err
	}
	byDate := map[string]int{}
	for _, row := range dayRows {
		byDate[row.Date] = row.Count
	}

	activity := model.ChartSeries{}
	today := time.Now().UTC()
	for i := 6; i >= 0; i-- {
		dateStr := today.AddDate(0, 0, -i).Format("2006-01-02")
		activity.Labels = append(activity.Labels, dateStr)
		activity.Data = append(activity.Data, byDate[dateStr])
	}

	return &model.AdminDashboard{
		Totals:             totals,
		RoleStats:          roleStats,
		ResponsesPerSurvey: perSurvey,
		SurveyActivity:     activity,
	}, nil
}
