package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/util"
)

// AnalyticsStore 分析服务需要的数据访问能力
type AnalyticsStore interface {
	GetSurvey(surveyID uint) (*model.Survey, error)
	ListQuestions(surveyID uint) ([]model.Question, error)
	ListResponses(surveyID uint, ids []uint) ([]model.SurveyResponse, error)
	ResolveResponseIDs(surveyID uint, filter *model.ResponseFilter) ([]uint, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// loadFiltered 解析过滤器并加载符合条件的答卷，全链路共用同一入口
func (s *AnalyticsService) loadFiltered(surveyID uint, filter *model.ResponseFilter) ([]model.SurveyResponse, error) {
	ids, err := s.store.ResolveResponseIDs(surveyID, filter)
	if err != nil {
		return nil, err
	}
	if filter != nil && len(ids) == 0 {
		return []model.SurveyResponse{}, nil
	}
	return s.store.ListResponses(surveyID, ids)
}

// GetOverview 问卷概览：答卷量、完成率、平均用时、按天时间序列
func (s *AnalyticsService) GetOverview(surveyID uint, filter *model.ResponseFilter) (*model.Overview, error) {
	if _, err := s.store.GetSurvey(surveyID); err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(surveyID)
	if err != nil {
		return nil, err
	}
	responses, err := s.loadFiltered(surveyID, filter)
	if err != nil {
		return nil, err
	}

	total := len(responses)
	completed := 0
	timeSum := 0
	timeCount := 0
	for _, r := range responses {
		if r.Status == model.ResponseCompleted {
			completed++
			if r.TimeTakenSeconds != nil && *r.TimeTakenSeconds > 0 {
				timeSum += *r.TimeTakenSeconds
				timeCount++
			}
		}
	}

	overview := &model.Overview{
		TotalResponses:     total,
		CompletedResponses: completed,
		DropOffResponses:   total - completed,
		QuestionsCount:     len(questions),
		TimeSeries:         buildTimeSeries(responses),
	}
	if total > 0 {
		overview.CompletionRate = util.Round1(float64(completed) / float64(total) * 100)
	}
	if timeCount > 0 {
		avg := int(float64(timeSum)/float64(timeCount) + 0.5)
		overview.AvgTimeSeconds = &avg
	}
	return overview, nil
}

// buildTimeSeries 按 UTC 日期聚合答卷量，没有答卷的日期不补零
func buildTimeSeries(responses []model.SurveyResponse) []model.TimeSeriesPoint {
	counts := make(map[string]int)
	for _, r := range responses {
		day := r.CreatedAt.UTC().Format("2006-01-02")
		counts[day]++
	}
	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make([]model.TimeSeriesPoint, 0, len(days))
	for _, day := range days {
		series = append(series, model.TimeSeriesPoint{Date: day, Count: counts[day]})
	}
	return series
}

// GetQuestionAnalysis 每道题的答案分布，按题型分派到不同统计策略
func (s *AnalyticsService) GetQuestionAnalysis(surveyID uint, filter *model.ResponseFilter) ([]model.QuestionStat, error) {
	questions, err := s.store.ListQuestions(surveyID)
	if err != nil {
		return nil, err
	}
	responses, err := s.loadFiltered(surveyID, filter)
	if err != nil {
		return nil, err
	}

	total := len(responses)
	byQuestion := answersByQuestion(responses)

	stats := make([]model.QuestionStat, 0, len(questions))
	for _, q := range questions {
		answers := byQuestion[q.ID]
		answered := len(answers)

		var detail interface{}
		switch q.Type.Kind() {
		case model.KindChoice:
			detail = buildChoiceStats(q, answers, total)
		case model.KindNumeric:
			detail = buildNumericStats(answers)
		default:
			detail = buildTextStats(answers, total)
		}

		stat := model.QuestionStat{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			QuestionType: q.Type,
			Order:        q.DisplayOrder,
			Stats:        detail,
		}
		if total > 0 {
			missing := total - answered
			if missing < 0 {
				missing = 0
			}
			stat.SkipRate = util.Round1(float64(missing) / float64(total) * 100)
		}
		stat.IsHighSkipRate = stat.SkipRate > 30
		stats = append(stats, stat)
	}
	return stats, nil
}

func answersByQuestion(responses []model.SurveyResponse) map[uint][]model.Answer {
	byQuestion := make(map[uint][]model.Answer)
	for _, r := range responses {
		for _, a := range r.Answers {
			byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
		}
	}
	return byQuestion
}

// buildChoiceStats 选项计数先按题目定义的选项清零，保证没人选的选项也出现在结果里
func buildChoiceStats(q model.Question, answers []model.Answer, totalResponses int) *model.ChoiceStats {
	optionText := make(map[uint]string, len(q.Options))
	keyOrder := make([]string, 0, len(q.Options))
	counts := make(map[string]int, len(q.Options))
	for _, opt := range q.Options {
		optionText[opt.ID] = opt.Text
		if _, ok := counts[opt.Text]; !ok {
			counts[opt.Text] = 0
			keyOrder = append(keyOrder, opt.Text)
		}
	}

	for _, a := range answers {
		key := choiceKey(a, optionText)
		if _, ok := counts[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		counts[key]++
	}

	stats := &model.ChoiceStats{
		Type:           "choice",
		AnsweredCount:  len(answers),
		Counts:         counts,
		OptionPercents: make(map[string]float64, len(counts)),
	}
	if missing := totalResponses - len(answers); missing > 0 {
		stats.MissingCount = missing
	}

	best := -1
	for _, key := range keyOrder {
		if len(answers) > 0 {
			stats.OptionPercents[key] = util.Round1(float64(counts[key]) / float64(len(answers)) * 100)
		} else {
			stats.OptionPercents[key] = 0
		}
		if counts[key] > best {
			best = counts[key]
			stats.TopOption = key
		}
	}
	if len(answers) == 0 {
		stats.TopOption = ""
	}
	return stats
}

// choiceKey 答案归类键：选项文本 -> 自由文本 -> 占位符
func choiceKey(a model.Answer, optionText map[uint]string) string {
	if a.OptionID != nil {
		if text, ok := optionText[*a.OptionID]; ok {
			return text
		}
	}
	if a.TextAnswer != nil && *a.TextAnswer != "" {
		return *a.TextAnswer
	}
	if a.OptionID != nil {
		return fmt.Sprintf("Option %d", *a.OptionID)
	}
	return "Unknown"
}

func buildNumericStats(answers []model.Answer) *model.NumericStats {
	stats := &model.NumericStats{
		Type:         "numeric",
		Distribution: make(map[string]int),
	}

	sum := 0.0
	for _, a := range answers {
		v, ok := numericValue(a)
		if !ok {
			continue
		}
		if stats.Count == 0 || v < stats.Min {
			stats.Min = v
		}
		if stats.Count == 0 || v > stats.Max {
			stats.Max = v
		}
		sum += v
		stats.Count++
		stats.Distribution[strconv.FormatFloat(v, 'f', -1, 64)]++
	}
	if stats.Count > 0 {
		stats.Average = util.Round2(sum / float64(stats.Count))
	}
	return stats
}

func numericValue(a model.Answer) (float64, bool) {
	if a.NumericAnswer != nil {
		return *a.NumericAnswer, isFiniteNumber(*a.NumericAnswer)
	}
	if a.TextAnswer != nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(*a.TextAnswer), 64)
		if err == nil {
			return v, isFiniteNumber(v)
		}
	}
	return 0, false
}

// isFiniteNumber ParseFloat 会接受 "NaN"/"Inf"，这类值会让整个结果无法序列化，按坏记录丢弃
func isFiniteNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// buildTextStats 样本只保留有效答案，垃圾答案进入 spamCount，
// count 和有效率的分母都是全部答卷数而不是作答数
func buildTextStats(answers []model.Answer, totalResponses int) *model.TextStats {
	stats := &model.TextStats{
		Type:          "text",
		AnsweredCount: len(answers),
		RecentAnswers: []string{},
	}

	validCount := 0
	for _, a := range answers {
		if a.TextAnswer == nil || *a.TextAnswer == "" {
			continue
		}
		switch ClassifyTextAnswer(*a.TextAnswer) {
		case TextSpam:
			stats.SpamCount++
		case TextTooShort:
			// 无效但不算垃圾
		default:
			validCount++
			if len(stats.RecentAnswers) < 15 {
				stats.RecentAnswers = append(stats.RecentAnswers, *a.TextAnswer)
			}
		}
	}
	stats.Count = totalResponses
	if totalResponses > 0 {
		stats.ValidRate = util.Round1(float64(validCount) / float64(totalResponses) * 100)
	}
	return stats
}

// GetDropOff 流失漏斗:每一步统计到达人数与在该步流失的人数
func (s *AnalyticsService) GetDropOff(surveyID uint, filter *model.ResponseFilter) (*model.DropOffAnalysis, error) {
	questions, err := s.store.ListQuestions(surveyID)
	if err != nil {
		return nil, err
	}
	responses, err := s.loadFiltered(surveyID, filter)
	if err != nil {
		return nil, err
	}

	total := len(responses)
	orderByQuestion := make(map[uint]int, len(questions))
	for _, q := range questions {
		orderByQuestion[q.ID] = q.DisplayOrder
	}

	// 每份答卷作答到的最大题序，没有作答记为 -1
	maxOrders := make([]int, 0, total)
	completedFlags := make([]bool, 0, total)
	bounced := 0
	for _, r := range responses {
		maxOrder := -1
		for _, a := range r.Answers {
			if order, ok := orderByQuestion[a.QuestionID]; ok && order > maxOrder {
				maxOrder = order
			}
		}
		if maxOrder < 0 {
			bounced++
		}
		maxOrders = append(maxOrders, maxOrder)
		completedFlags = append(completedFlags, r.Status == model.ResponseCompleted)
	}

	steps := make([]model.DropOffStep, 0, len(questions)+1)
	if bounced > 0 {
		step := model.DropOffStep{
			QuestionID:      0,
			QuestionText:    "Survey Start (Bounce)",
			Order:           0,
			ReachedCount:    total,
			DroppedOffCount: bounced,
		}
		if total > 0 {
			step.DropOffRate = util.Round1(float64(bounced) / float64(total) * 100)
		}
		steps = append(steps, step)
	}

	for _, q := range questions {
		reached := 0
		dropped := 0
		for i := range maxOrders {
			if maxOrders[i] >= q.DisplayOrder {
				reached++
				if !completedFlags[i] && maxOrders[i] == q.DisplayOrder {
					dropped++
				}
			}
		}
		step := model.DropOffStep{
			QuestionID:      q.ID,
			QuestionText:    q.Text,
			Order:           q.DisplayOrder,
			ReachedCount:    reached,
			DroppedOffCount: dropped,
		}
		if reached > 0 {
			step.DropOffRate = util.Round1(float64(dropped) / float64(reached) * 100)
		}
		steps = append(steps, step)
	}

	// 热点取流失率最高的前三个真实题目步骤，零流失的步骤也参与排序
	hotspots := make([]model.DropOffStep, 0, len(steps))
	for _, step := range steps {
		if step.QuestionID != 0 {
			hotspots = append(hotspots, step)
		}
	}
	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].DropOffRate > hotspots[j].DropOffRate
	})
	if len(hotspots) > 3 {
		hotspots = hotspots[:3]
	}

	return &model.DropOffAnalysis{Steps: steps, Hotspots: hotspots}, nil
}

// GetSegmentCatalog 可用的细分维度:固定身份维度 + 所有选择题
func (s *AnalyticsService) GetSegmentCatalog(surveyID uint) (*model.SegmentCatalog, error) {
	questions, err := s.store.ListQuestions(surveyID)
	if err != nil {
		return nil, err
	}

	catalog := &model.SegmentCatalog{
		Identity: []model.IdentitySegment{
			{Label: "Registered Users", Value: "user", Type: "identity"},
			{Label: "Anonymous", Value: "anonymous", Type: "identity"},
			{Label: "Email Only", Value: "email", Type: "identity"},
		},
		Questions: []model.QuestionSegment{},
	}
	for _, q := range questions {
		if q.Type != model.SingleChoice && q.Type != model.MultipleChoice {
			continue
		}
		seg := model.QuestionSegment{
			ID:      q.ID,
			Label:   q.Text,
			Options: make([]model.SegmentOption, 0, len(q.Options)),
		}
		for _, opt := range q.Options {
			seg.Options = append(seg.Options, model.SegmentOption{ID: opt.ID, Label: opt.Text})
		}
		catalog.Questions = append(catalog.Questions, seg)
	}
	return catalog, nil
}

// GetSegmentAnalysis 按身份维度分组统计，可叠加一个题目答案作为交叉过滤
func (s *AnalyticsService) GetSegmentAnalysis(surveyID uint, groupBy string, crossFilter *model.QuestionFilter) ([]model.SegmentStat, error) {
	var filter *model.ResponseFilter
	if crossFilter != nil {
		filter = &model.ResponseFilter{QuestionFilter: crossFilter}
	}
	responses, err := s.loadFiltered(surveyID, filter)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return []model.SegmentStat{}, nil
	}

	keyOrder := make([]string, 0)
	groups := make(map[string][]model.SurveyResponse)
	for _, r := range responses {
		key := segmentKey(r, groupBy)
		if _, ok := groups[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], r)
	}

	stats := make([]model.SegmentStat, 0, len(keyOrder))
	for _, key := range keyOrder {
		members := groups[key]
		completed := 0
		for _, r := range members {
			if r.Status == model.ResponseCompleted {
				completed++
			}
		}
		stat := model.SegmentStat{
			Segment:        key,
			TotalResponses: len(members),
		}
		if len(members) > 0 {
			stat.CompletionRate = util.Round1(float64(completed) / float64(len(members)) * 100)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func segmentKey(r model.SurveyResponse, groupBy string) string {
	switch groupBy {
	case "completion_status":
		return string(r.Status)
	case "email_domain":
		email := ""
		if r.Respondent != nil && r.Respondent.Email != "" {
			email = r.Respondent.Email
		} else if r.RespondentEmail != nil {
			email = *r.RespondentEmail
		}
		if at := strings.LastIndex(email, "@"); at >= 0 && at < len(email)-1 {
			return email[at+1:]
		}
		return "Unknown"
	default:
		return "Unknown"
	}
}

// responseDurationSeconds 答卷用时，优先使用记录值，缺失时用时间戳差兜底
func responseDurationSeconds(r model.SurveyResponse) (int, bool) {
	if r.TimeTakenSeconds != nil && *r.TimeTakenSeconds > 0 {
		return *r.TimeTakenSeconds, true
	}
	var end time.Time
	switch {
	case r.CompletedAt != nil:
		end = *r.CompletedAt
	case !r.UpdatedAt.IsZero():
		end = r.UpdatedAt
	default:
		return 0, false
	}
	d := int(end.Sub(r.CreatedAt).Seconds())
	if d <= 0 {
		return 0, false
	}
	return d, true
}
