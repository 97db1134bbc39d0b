package model

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	Dropdown       QuestionType = "dropdown"
	Checkbox       QuestionType = "checkbox"
	Rating         QuestionType = "rating"
	LikertScale    QuestionType = "likert_scale"
	NumberInput    QuestionType = "number"
	TextInput      QuestionType = "text"
	OpenEnded      QuestionType = "open_ended"
	Matrix         QuestionType = "matrix"
	Ranking        QuestionType = "ranking"
)

// QuestionKind 统计口径，所有题型都必须折算到这三类之一
type QuestionKind int

const (
	KindChoice QuestionKind = iota
	KindNumeric
	KindText
)

func (t QuestionType) Kind() QuestionKind {
	switch t {
	case SingleChoice, MultipleChoice, Dropdown, Checkbox:
		return KindChoice
	case Rating, LikertScale, NumberInput:
		return KindNumeric
	case TextInput, OpenEnded, Matrix, Ranking:
		return KindText
	default:
		// 未知题型按文本处理，绝不中断聚合
		return KindText
	}
}

type Question struct {
	BaseModel
	SurveyID uint         `gorm:"index;not null" json:"surveyId"`
	Text     string       `gorm:"type:text;not null" json:"text"`
	Type     QuestionType `gorm:"size:50;not null" json:"type"`
	// DisplayOrder 在同一问卷内唯一，漏斗分析依赖这个全序
	DisplayOrder int  `gorm:"not null" json:"displayOrder"`
	Required     bool `gorm:"default:false" json:"required"`

	Options []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

type QuestionOption struct {
	BaseModel
	QuestionID   uint   `gorm:"index;not null" json:"questionId"`
	Text         string `gorm:"size:500;not null" json:"text"`
	DisplayOrder int    `gorm:"default:0" json:"displayOrder"`
}
