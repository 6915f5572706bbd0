package models

import (
	"gorm.io/gorm"
)

// NoteVisibility controls who can read a note
type NoteVisibility string

const (
	VisibilityPrivate NoteVisibility = "private"
	VisibilityShared  NoteVisibility = "shared"
)

// Note represents a note in the system
type Note struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	Title      string         `json:"title" gorm:"not null"`
	Body       string         `json:"body"`
	Tags       string         `json:"tags"`
	Pinned     bool           `json:"pinned" gorm:"default:false"`
	Visibility NoteVisibility `json:"visibility" gorm:"default:'private'"`
	UserID     string         `json:"-" gorm:"column:user_id;index"`
	gorm.Model
}

// TableName specifies the table name for Note Model
func (Note) TableName() string {
	return "notes"
}
