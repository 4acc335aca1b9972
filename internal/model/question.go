package model

import "time"

// QuestionStatus is mutually exclusive; pinned is tracked separately.
type QuestionStatus string

const (
	StatusUnanswered QuestionStatus = "unanswered"
	StatusAnswered   QuestionStatus = "answered"
	StatusImportant  QuestionStatus = "important"
)

// DefaultAuthor is the label used when a student does not give one
const DefaultAuthor = "Anonymous"

// Valid reports whether s is one of the known statuses
func (s QuestionStatus) Valid() bool {
	switch s {
	case StatusUnanswered, StatusAnswered, StatusImportant:
		return true
	}
	return false
}

// Question is a student question on a course board
type Question struct {
	ID        string         `json:"id" bson:"_id,omitempty"`
	Text      string         `json:"text" bson:"text"`
	Author    string         `json:"author" bson:"author"`
	CourseID  string         `json:"courseId" bson:"courseId"`
	SessionID string         `json:"sessionId,omitempty" bson:"sessionId,omitempty"` // provenance, never rewritten
	StudentID string         `json:"studentId,omitempty" bson:"studentId,omitempty"`
	Status    QuestionStatus `json:"status" bson:"status"`
	Pinned    bool           `json:"pinned" bson:"pinned"`
	Answer    string         `json:"answer,omitempty" bson:"answer,omitempty"`
	ClientRef string         `json:"clientRef,omitempty" bson:"clientRef,omitempty"`
	Version   int64          `json:"version" bson:"version"` // bumped by every update
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// QuestionPatch carries the instructor-editable fields. Nil means untouched.
type QuestionPatch struct {
	Status *QuestionStatus `json:"status,omitempty"`
	Pinned *bool           `json:"pinned,omitempty"`
	Answer *string         `json:"answer,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p QuestionPatch) Empty() bool {
	return p.Status == nil && p.Pinned == nil && p.Answer == nil
}

// ClearScope selects which questions a bulk clear removes
type ClearScope string

const (
	ClearAnswered ClearScope = "answered"
	ClearAll      ClearScope = "all"
)

func (s ClearScope) Valid() bool {
	return s == ClearAnswered || s == ClearAll
}

// QuestionFilter narrows a course listing
type QuestionFilter struct {
	SessionID string
	Status    QuestionStatus
}
