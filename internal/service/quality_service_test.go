package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/pkg/cache"
)

type stubLLM struct {
	content  string
	provider string
	err      error
	calls    int
	messages []ChatMessage
}

func (s *stubLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	s.calls++
	return s.content, s.provider, s.err
}

func (s *stubLLM) CompleteWith(ctx context.Context, preferred, systemPrompt, userPrompt string) (string, string, error) {
	s.calls++
	return s.content, s.provider, s.err
}

func (s *stubLLM) Chat(ctx context.Context, preferred string, messages []ChatMessage) (string, string, error) {
	s.calls++
	s.messages = messages
	return s.content, s.provider, s.err
}

type stubQualityStore struct {
	survey    *model.Survey
	questions []model.Question
	responses []model.SurveyResponse
	texts     []string
	feedback  []model.SurveyFeedback
}

func (s *stubQualityStore) GetSurvey(surveyID uint) (*model.Survey, error) {
	return s.survey, nil
}

func (s *stubQualityStore) ListQuestions(surveyID uint) ([]model.Question, error) {
	return s.questions, nil
}

func (s *stubQualityStore) ListResponses(surveyID uint, ids []uint) ([]model.SurveyResponse, error) {
	return s.responses, nil
}

func (s *stubQualityStore) ListTextAnswers(surveyID uint) ([]string, error) {
	return s.texts, nil
}

func (s *stubQualityStore) ListRespondentFeedback(surveyID uint) ([]model.SurveyFeedback, error) {
	return s.feedback, nil
}

func (s *stubQualityStore) RecentFeedbackComments(surveyID uint, limit int) ([]model.SurveyFeedback, error) {
	if len(s.feedback) > limit {
		return s.feedback[:limit], nil
	}
	return s.feedback, nil
}

func newQualityService(store *stubQualityStore, llm LLMClient) *QualityService {
	return NewQualityService(store, llm, cache.New(16, time.Hour))
}

func timedResponse(id uint, status model.ResponseStatus, seconds int) model.SurveyResponse {
	r := makeResponse(id, status, day(1))
	r.TimeTakenSeconds = intPtr(seconds)
	return r
}

func TestQualityScoreBounds(t *testing.T) {
	store := &stubQualityStore{
		survey:    makeSurvey(nil),
		questions: []model.Question{makeQuestion(1, 1, model.OpenEnded, "How was it?")},
		responses: []model.SurveyResponse{
			timedResponse(1, model.ResponseCompleted, 30),
			timedResponse(2, model.ResponseCompleted, 45),
			makeResponse(3, model.ResponseStarted, day(1)),
		},
		texts: []string{"Quite good overall", "aaaaaaa"},
		feedback: []model.SurveyFeedback{
			{SurveyID: 1, Rating: 4},
			{SurveyID: 1, Rating: 5},
		},
	}
	llm := &stubLLM{content: `{"score": 18, "issues": []}`, provider: "gemini"}
	svc := newQualityService(store, llm)

	score, err := svc.GetQualityScore(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetQualityScore: %v", err)
	}
	if score.TotalScore < 0 || score.TotalScore > 100 {
		t.Fatalf("total score %d out of range", score.TotalScore)
	}
	sum := score.Factors.Completion.Score + score.Factors.Time.Score + score.Factors.Design.Score +
		score.Factors.TextQuality.Score + score.Factors.UserFeedback.Score
	if score.TotalScore != sum {
		t.Fatalf("total %d != factor sum %d", score.TotalScore, sum)
	}
	if score.Factors.Design.Score != 18 {
		t.Fatalf("design score = %d, want 18 from review", score.Factors.Design.Score)
	}
}

func TestQualityScoreZeroResponses(t *testing.T) {
	store := &stubQualityStore{
		survey:    makeSurvey(nil),
		questions: []model.Question{makeQuestion(1, 1, model.OpenEnded, "Q")},
	}
	llm := &stubLLM{content: `{"score": 20, "issues": []}`, provider: "gemini"}
	svc := newQualityService(store, llm)

	score, err := svc.GetQualityScore(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetQualityScore: %v", err)
	}
	if score.TotalScore < 0 || score.TotalScore > 100 {
		t.Fatalf("total score %d out of range", score.TotalScore)
	}
	if score.Factors.Completion.Score != 0 {
		t.Fatalf("completion score = %d, want 0", score.Factors.Completion.Score)
	}
	if score.Factors.Time.Score != 0 || len(score.Factors.Time.Warnings) == 0 {
		t.Fatalf("time factor without data = %+v, want 0 with warning", score.Factors.Time)
	}
	// 没有文本题、没有评价都不惩罚
	if score.Factors.TextQuality.Score != 20 || score.Factors.UserFeedback.Score != 20 {
		t.Fatalf("empty text/feedback factors = %d/%d, want 20/20",
			score.Factors.TextQuality.Score, score.Factors.UserFeedback.Score)
	}
}

func TestFeedbackFactorWithoutFeedback(t *testing.T) {
	store := &stubQualityStore{survey: makeSurvey(nil)}
	svc := newQualityService(store, &stubLLM{err: context.DeadlineExceeded})

	factor := svc.feedbackFactor(1)
	if factor.Score != 20 {
		t.Fatalf("score = %d, want 20", factor.Score)
	}
	if factor.Details["avgRating"] != "N/A" {
		t.Fatalf("avgRating = %v, want N/A", factor.Details["avgRating"])
	}
}

func TestFeedbackFactorLowRatingWarns(t *testing.T) {
	comment := "confusing questions"
	store := &stubQualityStore{
		survey: makeSurvey(nil),
		feedback: []model.SurveyFeedback{
			{SurveyID: 1, Rating: 2, Comment: &comment},
			{SurveyID: 1, Rating: 3},
		},
	}
	svc := newQualityService(store, &stubLLM{})

	factor := svc.feedbackFactor(1)
	if factor.Score != 10 {
		t.Fatalf("score = %d, want 10 (avg 2.5 * 4)", factor.Score)
	}
	if len(factor.Warnings) == 0 {
		t.Fatalf("expected low-rating warning")
	}
	if len(factor.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(factor.Comments))
	}
}

func TestTimeFactorSuspiciouslyFast(t *testing.T) {
	store := &stubQualityStore{survey: makeSurvey(nil)}
	svc := newQualityService(store, &stubLLM{})

	responses := []model.SurveyResponse{
		timedResponse(1, model.ResponseCompleted, 4),
		timedResponse(2, model.ResponseCompleted, 6),
	}
	// 5秒答5道题，平均每题1秒
	factor := svc.timeFactor(responses, 5)
	if factor.Score != 10 {
		t.Fatalf("score = %d, want 10 after fast-answer penalty", factor.Score)
	}
	if len(factor.Warnings) == 0 {
		t.Fatalf("expected fast-answer warning")
	}
}

func TestTimeFactorOnlyCountsCompletedResponses(t *testing.T) {
	store := &stubQualityStore{survey: makeSurvey(nil)}
	svc := newQualityService(store, &stubLLM{})

	// 半途而废的答卷可能几天后才被更新，不应污染平均时长
	stale := makeResponse(2, model.ResponseStarted, day(1))
	stale.UpdatedAt = day(3)

	responses := []model.SurveyResponse{
		timedResponse(1, model.ResponseCompleted, 30),
		stale,
	}
	factor := svc.timeFactor(responses, 1)
	if factor.Score != 20 {
		t.Fatalf("score = %d, want 20 with abandoned response excluded", factor.Score)
	}
	if avg := factor.Details["avgSecondsPerQuestion"]; avg != 30.0 {
		t.Fatalf("avgSecondsPerQuestion = %v, want 30", avg)
	}
	if factor.Details["timedResponses"] != 1 {
		t.Fatalf("timedResponses = %v, want 1", factor.Details["timedResponses"])
	}
}

func TestCompletionFactorNoDataWarning(t *testing.T) {
	store := &stubQualityStore{survey: makeSurvey(nil)}
	svc := newQualityService(store, &stubLLM{})

	factor := svc.completionFactor(nil)
	if factor.Score != 0 {
		t.Fatalf("score = %d, want 0", factor.Score)
	}
	if len(factor.Warnings) != 1 || !strings.Contains(factor.Warnings[0], "No data") {
		t.Fatalf("warnings = %v, want the no-data message", factor.Warnings)
	}
}

func TestDesignFactorNoQuestions(t *testing.T) {
	store := &stubQualityStore{survey: makeSurvey(nil)}
	llm := &stubLLM{err: context.DeadlineExceeded}
	svc := newQualityService(store, llm)

	factor := svc.designFactor(context.Background(), store.survey, nil)
	if factor.Score != 20 {
		t.Fatalf("score = %d, want 20 (missing data is not penalized)", factor.Score)
	}
	if len(factor.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", factor.Warnings)
	}
	if llm.calls != 0 {
		t.Fatalf("model should not be called for an empty survey")
	}
}

func TestDesignFactorFallsBackWhenProvidersFail(t *testing.T) {
	store := &stubQualityStore{
		survey:    makeSurvey(nil),
		questions: []model.Question{makeQuestion(1, 1, model.OpenEnded, "Q")},
	}
	llm := &stubLLM{err: context.DeadlineExceeded}
	svc := newQualityService(store, llm)

	factor := svc.designFactor(context.Background(), store.survey, store.questions)
	if factor.Score != 15 {
		t.Fatalf("score = %d, want default 15", factor.Score)
	}
	if len(factor.Warnings) == 0 {
		t.Fatalf("expected unavailable warning")
	}

	// 第二次命中缓存，不再调用模型
	callsBefore := llm.calls
	again := svc.designFactor(context.Background(), store.survey, store.questions)
	if llm.calls != callsBefore {
		t.Fatalf("expected cached design factor, llm called again")
	}
	if again.Score != factor.Score {
		t.Fatalf("cached score = %d, want %d", again.Score, factor.Score)
	}
}

func TestDesignFactorHeuristicOnBadJSON(t *testing.T) {
	longText := strings.Repeat("why ", 50) // >150 字符
	store := &stubQualityStore{
		survey: makeSurvey(nil),
		questions: []model.Question{
			makeQuestion(1, 1, model.OpenEnded, longText),
			makeQuestion(2, 2, model.OpenEnded, "short"),
		},
	}
	llm := &stubLLM{content: "I think the survey looks fine.", provider: "groq"}
	svc := newQualityService(store, llm)

	factor := svc.designFactor(context.Background(), store.survey, store.questions)
	if factor.Score != 18 {
		t.Fatalf("score = %d, want 18 (20 - 2 per overlong question)", factor.Score)
	}
}

func TestDesignFactorStripsCodeFence(t *testing.T) {
	store := &stubQualityStore{
		survey:    makeSurvey(nil),
		questions: []model.Question{makeQuestion(1, 1, model.OpenEnded, "Q")},
	}
	llm := &stubLLM{content: "```json\n{\"score\": 17, \"issues\": [\"leading wording\"]}\n```", provider: "gemini"}
	svc := newQualityService(store, llm)

	factor := svc.designFactor(context.Background(), store.survey, store.questions)
	if factor.Score != 17 {
		t.Fatalf("score = %d, want 17 from fenced JSON", factor.Score)
	}
	if len(factor.Warnings) != 1 {
		t.Fatalf("warnings = %v, want the review issue", factor.Warnings)
	}
}

func TestDesignFactorClampsScore(t *testing.T) {
	store := &stubQualityStore{
		survey:    makeSurvey(nil),
		questions: []model.Question{makeQuestion(1, 1, model.OpenEnded, "Q")},
	}
	llm := &stubLLM{content: `{"score": 99, "issues": []}`, provider: "gemini"}
	svc := newQualityService(store, llm)

	factor := svc.designFactor(context.Background(), store.survey, store.questions)
	if factor.Score != 20 {
		t.Fatalf("score = %d, want clamp to 20", factor.Score)
	}
}
