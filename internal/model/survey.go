package model

import "time"

type SurveyStatus string

const (
	SurveyDraft  SurveyStatus = "draft"
	SurveyActive SurveyStatus = "active"
	SurveyClosed SurveyStatus = "closed"
)

type Survey struct {
	BaseModel
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Status      SurveyStatus `gorm:"size:20;default:'draft';index" json:"status"`
	CreatedBy   uint         `gorm:"index" json:"createdBy"`
	Creator     *User        `gorm:"foreignKey:CreatedBy" json:"-"`
	// PublicToken 对外投放链接用的不透明标识，避免暴露自增ID
	PublicToken string     `gorm:"size:36;uniqueIndex" json:"publicToken"`
	ClosesAt    *time.Time `json:"closesAt,omitempty"`

	Questions []Question       `gorm:"foreignKey:SurveyID" json:"questions,omitempty"`
	Responses []SurveyResponse `gorm:"foreignKey:SurveyID" json:"-"`
}
