package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Source tells where a task was created. It never changes after creation.
type Source string

const (
	SourceWeb      Source = "web"
	SourceWhatsApp Source = "whatsapp"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceWeb || s == SourceWhatsApp
}

// AutoEnhance reports whether tasks from this source are enhanced without an explicit request.
func (s Source) AutoEnhance() bool {
	return s == SourceWhatsApp
}

// Task represents a single item in the tracker.
type Task struct {
	ID                  string                     `gorm:"primaryKey;size:36" json:"id"`
	Title               string                     `gorm:"not null" json:"title"`
	Description         string                     `gorm:"not null;default:''" json:"description"`
	IsCompleted         bool                       `gorm:"not null;default:false" json:"isCompleted"`
	Source              Source                     `gorm:"size:16;not null;default:'web'" json:"source"`
	Enhanced            bool                       `gorm:"not null;default:false" json:"enhanced"`
	IsEnhancing         bool                       `gorm:"not null;default:false" json:"isEnhancing"`
	EnhancedDescription *string                    `json:"enhancedDescription"`
	EnhancementSteps    datatypes.JSONSlice[string] `json:"enhancementSteps"`
	CreatedAt           time.Time                  `gorm:"index" json:"createdAt"`
	UpdatedAt           time.Time                  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Steps returns enhancement steps as a plain slice, nil when absent.
func (t Task) Steps() []string {
	if len(t.EnhancementSteps) == 0 {
		return nil
	}
	return []string(t.EnhancementSteps)
}

// TaskPatch lists the fields an update may touch. Nil means "not specified".
type TaskPatch struct {
	Title               *string   `json:"title,omitempty"`
	Description         *string   `json:"description,omitempty"`
	IsCompleted         *bool     `json:"isCompleted,omitempty"`
	Enhanced            *bool     `json:"enhanced,omitempty"`
	IsEnhancing         *bool     `json:"isEnhancing,omitempty"`
	EnhancedDescription *string   `json:"enhancedDescription,omitempty"`
	EnhancementSteps    *[]string `json:"enhancementSteps,omitempty"`
}

// Empty reports whether no field is specified.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.IsCompleted == nil &&
		p.Enhanced == nil && p.IsEnhancing == nil &&
		p.EnhancedDescription == nil && p.EnhancementSteps == nil
}

// ApplyTo merges the specified fields into a copy of t. It does no validation.
func (p TaskPatch) ApplyTo(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	if p.Enhanced != nil {
		t.Enhanced = *p.Enhanced
	}
	if p.IsEnhancing != nil {
		t.IsEnhancing = *p.IsEnhancing
	}
	if p.EnhancedDescription != nil {
		value := *p.EnhancedDescription
		t.EnhancedDescription = &value
	}
	if p.EnhancementSteps != nil {
		if len(*p.EnhancementSteps) == 0 {
			t.EnhancementSteps = nil
		} else {
			t.EnhancementSteps = append(datatypes.JSONSlice[string](nil), (*p.EnhancementSteps)...)
		}
	}
	return t
}
