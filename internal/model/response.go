package model

import "time"

type ResponseStatus string

const (
	ResponseStarted   ResponseStatus = "started"
	ResponseCompleted ResponseStatus = "completed"
)

type SurveyResponse struct {
	BaseModel
	SurveyID        uint           `gorm:"index;not null" json:"surveyId"`
	Status          ResponseStatus `gorm:"size:20;default:'started';index" json:"status"`
	RespondentID    *uint          `gorm:"index" json:"respondentId,omitempty"`
	Respondent      *User          `gorm:"foreignKey:RespondentID" json:"-"`
	RespondentEmail *string        `gorm:"size:255" json:"respondentEmail,omitempty"`
	IsAnonymous     bool           `gorm:"default:false" json:"isAnonymous"`
	// TimeTakenSeconds 为0或缺失都视为"没有可用计时"，不是有效的快速作答
	TimeTakenSeconds *int       `json:"timeTakenSeconds,omitempty"`
	CompletedAt      *time.Time `gorm:"column:completion_time" json:"completedAt,omitempty"`

	Answers []Answer `gorm:"foreignKey:ResponseID" json:"answers,omitempty"`
}

// Answer 按题型只有 OptionID/TextAnswer/NumericAnswer 其中一个有语义，
// 多选题一个选项一行，共享 QuestionID
type Answer struct {
	BaseModel
	ResponseID    uint     `gorm:"column:survey_response_id;index;not null" json:"responseId"`
	QuestionID    uint     `gorm:"index;not null" json:"questionId"`
	OptionID      *uint    `json:"optionId,omitempty"`
	TextAnswer    *string  `gorm:"type:text" json:"textAnswer,omitempty"`
	NumericAnswer *float64 `json:"numericAnswer,omitempty"`
}
