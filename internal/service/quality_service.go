package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/util"
	"survey_analytics_backend/pkg/cache"
	"survey_analytics_backend/pkg/logger"
)

// QualityStore 质量评分需要的数据访问能力
type QualityStore interface {
	GetSurvey(surveyID uint) (*model.Survey, error)
	ListQuestions(surveyID uint) ([]model.Question, error)
	ListResponses(surveyID uint, ids []uint) ([]model.SurveyResponse, error)
	ListTextAnswers(surveyID uint) ([]string, error)
	ListRespondentFeedback(surveyID uint) ([]model.SurveyFeedback, error)
	RecentFeedbackComments(surveyID uint, limit int) ([]model.SurveyFeedback, error)
}

// QualityService 五因子问卷质量评分，每个因子满分20，总分0-100。
// 问卷设计因子走大模型评审，结果按(问卷ID,题目数)缓存，题目没变就不用重复花钱
type QualityService struct {
	store       QualityStore
	llm         LLMClient
	designCache *cache.TTLCache
}

func NewQualityService(store QualityStore, llm LLMClient, designCache *cache.TTLCache) *QualityService {
	return &QualityService{store: store, llm: llm, designCache: designCache}
}

func (s *QualityService) GetQualityScore(ctx context.Context, surveyID uint) (*model.QualityScore, error) {
	survey, err := s.store.GetSurvey(surveyID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(surveyID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(surveyID, nil)
	if err != nil {
		return nil, err
	}

	factors := model.QualityFactors{
		Completion:   s.completionFactor(responses),
		Time:         s.timeFactor(responses, len(questions)),
		Design:       s.designFactor(ctx, survey, questions),
		TextQuality:  s.textFactor(surveyID),
		UserFeedback: s.feedbackFactor(surveyID),
	}

	score := &model.QualityScore{
		TotalScore: factors.Completion.Score + factors.Time.Score + factors.Design.Score +
			factors.TextQuality.Score + factors.UserFeedback.Score,
		Factors:  factors,
		Warnings: []string{},
	}
	for _, f := range []model.QualityFactor{factors.Completion, factors.Time, factors.Design, factors.TextQuality, factors.UserFeedback} {
		score.Warnings = append(score.Warnings, f.Warnings...)
	}
	return score, nil
}

// completionFactor 完成率直接映射到0-20分
func (s *QualityService) completionFactor(responses []model.SurveyResponse) model.QualityFactor {
	factor := model.QualityFactor{Warnings: []string{}}

	total := len(responses)
	completed := 0
	for _, r := range responses {
		if r.Status == model.ResponseCompleted {
			completed++
		}
	}

	rate := 0.0
	if total > 0 {
		rate = float64(completed) / float64(total) * 100
	}
	factor.Score = clampScore(int(math.Round(rate / 100 * 20)))
	factor.Details = map[string]interface{}{
		"completionRate":     util.Round1(rate),
		"totalResponses":     total,
		"completedResponses": completed,
	}
	if total == 0 {
		factor.Warnings = append(factor.Warnings, "No data for completion analysis")
	} else if rate < 50 {
		factor.Warnings = append(factor.Warnings, "Completion rate is below 50%, consider shortening the survey")
	}
	return factor
}

// timeFactor 平均每题作答时长:少于3秒怀疑乱填扣10分，超过3分钟说明题目太重扣5分。
// 只统计已完成的答卷，半途而废的答卷 updated_at 可能是几天后，会把平均值拉爆
func (s *QualityService) timeFactor(responses []model.SurveyResponse, questionCount int) model.QualityFactor {
	factor := model.QualityFactor{Warnings: []string{}}

	durations := make([]int, 0, len(responses))
	for _, r := range responses {
		if r.Status != model.ResponseCompleted {
			continue
		}
		if d, ok := responseDurationSeconds(r); ok {
			durations = append(durations, d)
		}
	}

	if len(durations) == 0 || questionCount == 0 {
		factor.Score = 0
		factor.Warnings = append(factor.Warnings, "No timing data available for this survey")
		factor.Details = map[string]interface{}{"avgSecondsPerQuestion": nil}
		return factor
	}

	sum := 0
	for _, d := range durations {
		sum += d
	}
	avgPerQuestion := float64(sum) / float64(len(durations)) / float64(questionCount)

	score := 20
	if avgPerQuestion < 3 {
		score -= 10
		factor.Warnings = append(factor.Warnings, "Respondents answer suspiciously fast, responses may be low effort")
	}
	if avgPerQuestion > 180 {
		score -= 5
		factor.Warnings = append(factor.Warnings, "Questions take very long to answer, consider simplifying them")
	}
	factor.Score = clampScore(score)
	factor.Details = map[string]interface{}{
		"avgSecondsPerQuestion": util.Round1(avgPerQuestion),
		"timedResponses":        len(durations),
	}
	return factor
}

type designReview struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// designFactor 让大模型按评分规则审一遍题目设计，失败时退回长度启发式
func (s *QualityService) designFactor(ctx context.Context, survey *model.Survey, questions []model.Question) model.QualityFactor {
	factor := model.QualityFactor{Warnings: []string{}}

	cacheKey := fmt.Sprintf("design:%d:%d", survey.ID, len(questions))
	if cached, ok := s.designCache.Get(cacheKey); ok {
		if f, ok := cached.(model.QualityFactor); ok {
			return f
		}
	}

	// 没有题目没什么可审的，和文本、评价因子一样不因缺数据扣分
	if len(questions) == 0 {
		factor.Score = 20
		return factor
	}

	content, provider, err := s.llm.Complete(ctx, designReviewSystemPrompt, buildDesignPrompt(survey, questions))
	if err != nil {
		logger.Log.Warn("design review unavailable, using default score",
			zap.Uint("survey_id", survey.ID),
			zap.Error(err))
		factor.Score = 15
		factor.Warnings = append(factor.Warnings, "Automated design review unavailable, default score applied")
		s.designCache.Set(cacheKey, factor)
		return factor
	}

	var review designReview
	if err := json.Unmarshal([]byte(StripCodeFence(content)), &review); err != nil {
		// 模型没按格式回答，退回朴素的题干长度检查
		long := 0
		for _, q := range questions {
			if len(q.Text) > 150 {
				long++
			}
		}
		factor.Score = clampScore(20 - 2*long)
		if long > 0 {
			factor.Warnings = append(factor.Warnings, fmt.Sprintf("%d question(s) are very long, consider rewording", long))
		}
		factor.Details = map[string]interface{}{"method": "heuristic"}
		s.designCache.Set(cacheKey, factor)
		return factor
	}

	factor.Score = clampScore(review.Score)
	factor.Details = map[string]interface{}{
		"method":   "llm",
		"provider": provider,
		"issues":   review.Issues,
	}
	for _, issue := range review.Issues {
		factor.Warnings = append(factor.Warnings, issue)
	}
	s.designCache.Set(cacheKey, factor)
	return factor
}

const designReviewSystemPrompt = `You are a survey methodology expert. Review the survey design and respond with strict JSON only, no markdown: {"score": <integer 0-20>, "issues": [<short strings describing design problems, empty if none>]}. Judge question clarity, leading wording, question length and answer option coverage.`

func buildDesignPrompt(survey *model.Survey, questions []model.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Survey title: %s\n", survey.Title)
	if survey.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", survey.Description)
	}
	fmt.Fprintf(&b, "Questions (%d):\n", len(questions))
	for _, q := range questions {
		fmt.Fprintf(&b, "%d. [%s] %s\n", q.DisplayOrder, q.Type, q.Text)
	}
	return b.String()
}

// textFactor 全卷文本答案有效率映射到0-20分，没有文本题不扣分
func (s *QualityService) textFactor(surveyID uint) model.QualityFactor {
	factor := model.QualityFactor{Warnings: []string{}}

	texts, err := s.store.ListTextAnswers(surveyID)
	if err != nil {
		logger.Log.Error("failed to load text answers for quality score", zap.Error(err))
		factor.Score = 0
		factor.Warnings = append(factor.Warnings, "Text answers could not be loaded")
		return factor
	}
	if len(texts) == 0 {
		factor.Score = 20
		factor.Details = map[string]interface{}{"textAnswers": 0}
		return factor
	}

	valid := 0
	spam := 0
	for _, t := range texts {
		switch ClassifyTextAnswer(t) {
		case TextValid:
			valid++
		case TextSpam:
			spam++
		}
	}
	rate := float64(valid) / float64(len(texts)) * 100
	factor.Score = clampScore(int(math.Round(rate / 100 * 20)))
	factor.Details = map[string]interface{}{
		"textAnswers": len(texts),
		"validRate":   util.Round1(rate),
		"spamCount":   spam,
	}
	if rate < 60 {
		factor.Warnings = append(factor.Warnings, "More than 40% of text answers look like spam or filler")
	}
	return factor
}

// feedbackFactor 受访者星级评价均值乘4映射到0-20分，没有评价不惩罚
func (s *QualityService) feedbackFactor(surveyID uint) model.QualityFactor {
	factor := model.QualityFactor{Warnings: []string{}}

	feedback, err := s.store.ListRespondentFeedback(surveyID)
	if err != nil {
		logger.Log.Error("failed to load feedback for quality score", zap.Error(err))
		factor.Score = 0
		factor.Warnings = append(factor.Warnings, "Respondent feedback could not be loaded")
		return factor
	}

	if len(feedback) == 0 {
		factor.Score = 20
		factor.Details = map[string]interface{}{"avgRating": "N/A", "count": 0}
		return factor
	}

	sum := 0
	for _, f := range feedback {
		sum += f.Rating
	}
	avg := float64(sum) / float64(len(feedback))
	factor.Score = clampScore(int(math.Round(avg * 4)))
	factor.Details = map[string]interface{}{
		"avgRating": util.Round2(avg),
		"count":     len(feedback),
	}
	if avg < 3.0 {
		factor.Warnings = append(factor.Warnings, "Respondents rate their experience below 3.0, review the survey flow")
	}

	recent, err := s.store.RecentFeedbackComments(surveyID, 5)
	if err == nil {
		for _, f := range recent {
			comment := ""
			if f.Comment != nil {
				comment = *f.Comment
			}
			factor.Comments = append(factor.Comments, model.FeedbackComment{
				ID:        f.ID,
				Rating:    f.Rating,
				Comment:   comment,
				CreatedAt: f.CreatedAt,
			})
		}
	}
	return factor
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 20 {
		return 20
	}
	return score
}
