package models

// TemplateModel is a reusable dilemma with preset criteria.
type TemplateModel struct {
	Base
	Title    string      `json:"title"     gorm:"type:varchar(191);not null"`
	Dilemma  string      `json:"dilemma"   gorm:"type:text;not null"`
	Criteria []Criterion `json:"criteria"  gorm:"type:longtext;serializer:json"`
	Category string      `json:"category"  gorm:"type:varchar(64);index"`
	IsPublic bool        `json:"is_public" gorm:"default:false;index"`
	AuthorID string      `json:"author_id" gorm:"type:char(36);index"`
	Uses     int         `json:"uses"      gorm:"default:0"`
}

func (TemplateModel) TableName() string { return "templates" }
