package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/pkg/cache"
	"survey_analytics_backend/pkg/logger"
)

const chatFallbackMessage = "I'm sorry, I'm having trouble analyzing the data right now. Please try again later."

// InsightService 基于统计结果生成大模型洞察与数据问答。
// 洞察结果按问卷缓存，命中则不再调用模型；全部服务商失败时返回结构一致的降级结果
type InsightService struct {
	analytics    *AnalyticsService
	store        AnalyticsStore
	llm          LLMClient
	insightCache *cache.TTLCache
}

func NewInsightService(analytics *AnalyticsService, store AnalyticsStore, llm LLMClient, insightCache *cache.TTLCache) *InsightService {
	return &InsightService{analytics: analytics, store: store, llm: llm, insightCache: insightCache}
}

// GetAiInsights 生成问卷洞察，force 为 true 时跳过缓存重新生成
func (s *InsightService) GetAiInsights(ctx context.Context, surveyID uint, force bool) (*model.Insights, error) {
	key := fmt.Sprintf("insights:%d", surveyID)
	if !force {
		if cached, ok := s.insightCache.Get(key); ok {
			if insights, ok := cached.(*model.Insights); ok {
				return insights, nil
			}
		}
	}

	summary, overview, stats, err := s.buildDataSummary(surveyID)
	if err != nil {
		return nil, err
	}

	insights := s.generate(ctx, summary, overview)
	// 降级结果不进缓存，固定两条通用建议也不再追加，服务商恢复后下一次请求就能拿到真洞察
	if insights.Status == "unavailable" {
		return insights, nil
	}

	appendSkipRateActions(insights, stats)
	s.insightCache.Set(key, insights)
	return insights, nil
}

func (s *InsightService) generate(ctx context.Context, summary string, overview *model.Overview) *model.Insights {
	content, provider, err := s.llm.Complete(ctx, insightSystemPrompt, summary)
	if err != nil {
		logger.Log.Warn("AI insights unavailable, serving fallback", zap.Error(err))
		return fallbackInsights(overview, "All AI providers failed or timed out")
	}

	var insights model.Insights
	if err := json.Unmarshal([]byte(StripCodeFence(content)), &insights); err != nil {
		logger.Log.Warn("AI insights response was not valid JSON, serving fallback",
			zap.String("provider", provider),
			zap.Error(err))
		return fallbackInsights(overview, "AI response could not be parsed")
	}

	insights.Status = ""
	insights.Reason = ""
	insights.Provider = provider
	if insights.KeyFindings == nil {
		insights.KeyFindings = []string{}
	}
	if insights.RespondentsNeeds == nil {
		insights.RespondentsNeeds = []string{}
	}
	if insights.RecommendedActions == nil {
		insights.RecommendedActions = []string{}
	}
	return &insights
}

const insightSystemPrompt = `You are a survey analytics assistant. Based on the survey data summary, respond with strict JSON only, no markdown fences: {"summary": <2-3 sentence overview>, "key_findings": [<strings>], "respondents_needs": [<strings>], "recommended_actions": [<strings>]}. Be specific and reference the numbers in the data.`

// buildDataSummary 把概览和题目统计压成给模型看的纯文本摘要
func (s *InsightService) buildDataSummary(surveyID uint) (string, *model.Overview, []model.QuestionStat, error) {
	survey, err := s.store.GetSurvey(surveyID)
	if err != nil {
		return "", nil, nil, err
	}
	overview, err := s.analytics.GetOverview(surveyID, nil)
	if err != nil {
		return "", nil, nil, err
	}
	stats, err := s.analytics.GetQuestionAnalysis(surveyID, nil)
	if err != nil {
		return "", nil, nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Survey: %s\n", survey.Title)
	fmt.Fprintf(&b, "Responses: %d total, %d completed, completion rate %.1f%%\n",
		overview.TotalResponses, overview.CompletedResponses, overview.CompletionRate)
	if overview.AvgTimeSeconds != nil {
		fmt.Fprintf(&b, "Average completion time: %d seconds\n", *overview.AvgTimeSeconds)
	} else {
		b.WriteString("Average completion time: no data\n")
	}

	for _, stat := range stats {
		fmt.Fprintf(&b, "\nQ%d (%s): %s (skip rate %.1f%%)\n", stat.Order, stat.QuestionType, stat.QuestionText, stat.SkipRate)
		switch detail := stat.Stats.(type) {
		case *model.ChoiceStats:
			fmt.Fprintf(&b, "  %d answers, top option: %s\n", detail.AnsweredCount, detail.TopOption)
			for option, pct := range detail.OptionPercents {
				fmt.Fprintf(&b, "  - %s: %d (%.1f%%)\n", option, detail.Counts[option], pct)
			}
		case *model.NumericStats:
			fmt.Fprintf(&b, "  %d values, avg %.2f, min %v, max %v\n", detail.Count, detail.Average, detail.Min, detail.Max)
		case *model.TextStats:
			fmt.Fprintf(&b, "  %d text answers, %.1f%% valid, %d spam\n", detail.AnsweredCount, detail.ValidRate, detail.SpamCount)
			for i, answer := range detail.RecentAnswers {
				if i >= 5 {
					break
				}
				fmt.Fprintf(&b, "  - %q\n", answer)
			}
		}
	}
	return b.String(), overview, stats, nil
}

// appendSkipRateActions 高跳过率题目固定追加到建议里，不依赖模型是否注意到
func appendSkipRateActions(insights *model.Insights, stats []model.QuestionStat) {
	for _, stat := range stats {
		if stat.IsHighSkipRate {
			insights.RecommendedActions = append(insights.RecommendedActions,
				fmt.Sprintf("Question %q has a %.1f%% skip rate, consider making it clearer or optional", stat.QuestionText, stat.SkipRate))
		}
	}
}

// fallbackInsights 降级结果保持和正常结果同一结构，前端不用分支处理，
// 关键发现直接取概览里的客观数字
func fallbackInsights(overview *model.Overview, reason string) *model.Insights {
	completion := "low"
	if overview.CompletionRate > 50 {
		completion = "healthy"
	}
	avgTime := "not available"
	if overview.AvgTimeSeconds != nil {
		avgTime = fmt.Sprintf("%d seconds", *overview.AvgTimeSeconds)
	}
	return &model.Insights{
		Status:  "unavailable",
		Reason:  reason,
		Summary: fmt.Sprintf("Survey has collected %d responses with a completion rate of %.1f%%.", overview.TotalResponses, overview.CompletionRate),
		KeyFindings: []string{
			"Completion rate is " + completion,
			"Average time taken is " + avgTime,
		},
		RespondentsNeeds:   []string{"Unable to analyze specific needs without AI connection."},
		RecommendedActions: []string{"Check survey distribution channels", "Review question clarity"},
	}
}

// ChatWithData 基于问卷数据的问答，携带对话历史，可指定优先服务商
func (s *InsightService) ChatWithData(ctx context.Context, surveyID uint, message string, history []ChatMessage, provider string) (string, error) {
	summary, _, _, err := s.buildDataSummary(surveyID)
	if err != nil {
		return "", err
	}

	system := "You are a helpful survey analytics assistant. Answer the user's question using only the survey data below. Be concise and cite concrete numbers.\n\n" + summary

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: system})
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, ChatMessage{Role: "user", Content: message})

	answer, _, err := s.llm.Chat(ctx, provider, messages)
	if err != nil {
		logger.Log.Warn("chat with data unavailable", zap.Uint("survey_id", surveyID), zap.Error(err))
		return chatFallbackMessage, nil
	}
	return answer, nil
}
