package model

type FeedbackSource string

const (
	FeedbackRespondent FeedbackSource = "respondent"
	FeedbackInternal   FeedbackSource = "internal"
)

// SurveyFeedback 问卷本身的评价（区别于 Answer），respondent 来源的必须挂在某次作答上
type SurveyFeedback struct {
	BaseModel
	SurveyID    uint           `gorm:"index;not null" json:"surveyId"`
	ResponseID  *uint          `gorm:"uniqueIndex" json:"responseId,omitempty"`
	Rating      int            `gorm:"not null" json:"rating"`
	Comment     *string        `gorm:"type:text" json:"comment,omitempty"`
	Source      FeedbackSource `gorm:"size:20;default:'respondent';index" json:"source"`
	IsProcessed bool           `gorm:"default:false" json:"isProcessed"`
}
