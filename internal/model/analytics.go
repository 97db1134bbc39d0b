package model

import "time"

// ResponseFilter 为空字段表示不限制；整个过滤器为 nil 表示"全量"，不是空集
type ResponseFilter struct {
	IdentityType   string          `json:"identityType,omitempty" form:"identityType"` // anonymous | user | email
	QuestionFilter *QuestionFilter `json:"questionFilter,omitempty"`
}

type QuestionFilter struct {
	QuestionID uint `json:"questionId" form:"filterQuestionId"`
	OptionID   uint `json:"optionId" form:"filterOptionId"`
}

type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Overview struct {
	TotalResponses     int               `json:"totalResponses"`
	CompletedResponses int               `json:"completedResponses"`
	DropOffResponses   int               `json:"dropOffResponses"`
	CompletionRate     float64           `json:"completionRate"`
	AvgTimeSeconds     *int              `json:"avgTimeSeconds"` // 没有可用计时数据时为 null
	QuestionsCount     int               `json:"questionsCount"`
	TimeSeries         []TimeSeriesPoint `json:"timeSeries"`
}

// ChoiceStats / NumericStats / TextStats 通过 Type 字段区分，挂在 QuestionStat.Stats 上
type ChoiceStats struct {
	Type           string             `json:"type"`
	Counts         map[string]int     `json:"counts"`
	OptionPercents map[string]float64 `json:"optionPercents"`
	AnsweredCount  int                `json:"answeredCount"`
	MissingCount   int                `json:"missingCount"`
	TopOption      string             `json:"topOption"`
}

type NumericStats struct {
	Type         string         `json:"type"`
	Average      float64        `json:"average"`
	Min          float64        `json:"min"`
	Max          float64        `json:"max"`
	Count        int            `json:"count"`
	Distribution map[string]int `json:"distribution"`
}

type TextStats struct {
	Type          string   `json:"type"`
	RecentAnswers []string `json:"recentAnswers"`
	Count         int      `json:"count"`
	AnsweredCount int      `json:"answeredCount"`
	ValidRate     float64  `json:"validRate"`
	SpamCount     int      `json:"spamCount"`
}

type QuestionStat struct {
	QuestionID     uint         `json:"questionId"`
	QuestionText   string       `json:"questionText"`
	QuestionType   QuestionType `json:"questionType"`
	Order          int          `json:"order"`
	Stats          interface{}  `json:"stats"`
	SkipRate       float64      `json:"skipRate"`
	IsHighSkipRate bool         `json:"isHighSkipRate"`
}

// DropOffStep QuestionID 为 0 表示合成的 "Survey Start (Bounce)" 起始步骤
type DropOffStep struct {
	QuestionID      uint    `json:"questionId"`
	QuestionText    string  `json:"questionText"`
	Order           int     `json:"order"`
	ReachedCount    int     `json:"reachedCount"`
	DroppedOffCount int     `json:"droppedOffCount"`
	DropOffRate     float64 `json:"dropOffRate"`
}

type DropOffAnalysis struct {
	Steps    []DropOffStep `json:"steps"`
	Hotspots []DropOffStep `json:"hotspots"`
}

type SegmentStat struct {
	Segment        string  `json:"segment"`
	TotalResponses int     `json:"totalResponses"`
	CompletionRate float64 `json:"completionRate"`
}

type IdentitySegment struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

type SegmentOption struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
}

type QuestionSegment struct {
	ID      uint            `json:"id"`
	Label   string          `json:"label"`
	Options []SegmentOption `json:"options"`
}

type SegmentCatalog struct {
	Identity  []IdentitySegment `json:"identity"`
	Questions []QuestionSegment `json:"questions"`
}

type QualityFactor struct {
	Score    int                    `json:"score"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Comments []FeedbackComment      `json:"comments,omitempty"`
	Warnings []string               `json:"warnings"`
}

type QualityFactors struct {
	Completion   QualityFactor `json:"completion"`
	Time         QualityFactor `json:"time"`
	Design       QualityFactor `json:"design"`
	TextQuality  QualityFactor `json:"textQuality"`
	UserFeedback QualityFactor `json:"userFeedback"`
}

type QualityScore struct {
	TotalScore int            `json:"totalScore"`
	Factors    QualityFactors `json:"factors"`
	Warnings   []string       `json:"warnings"`
}

type FeedbackComment struct {
	ID        uint      `json:"id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Insights Status 为 "unavailable" 时表示降级结果，Reason 说明原因
type Insights struct {
	Status             string   `json:"status,omitempty"`
	Reason             string   `json:"reason,omitempty"`
	Provider           string   `json:"provider,omitempty"`
	Summary            string   `json:"summary"`
	KeyFindings        []string `json:"key_findings"`
	RespondentsNeeds   []string `json:"respondents_needs"`
	RecommendedActions []string `json:"recommended_actions"`
}

type FeedbackStats struct {
	Count        int               `json:"count"`
	AvgRating    float64           `json:"avgRating"`
	Distribution map[int]int       `json:"distribution"`
	Recent       []FeedbackComment `json:"recent"`
}

type CreatorDashboard struct {
	TotalSurveys  int64 `json:"totalSurveys"`
	ActiveSurveys int64 `json:"activeSurveys"`
	DraftSurveys  int64 `json:"draftSurveys"`
	ClosedSurveys int64 `json:"closedSurveys"`
}

type ChartSeries struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

type AdminDashboard struct {
	Totals             map[string]int64 `json:"totals"`
	RoleStats          map[string]int64 `json:"roleStats"`
	ResponsesPerSurvey ChartSeries      `json:"responsesPerSurvey"`
	SurveyActivity     ChartSeries      `json:"surveyActivity"`
}
