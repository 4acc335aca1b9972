package model

type EventType string

const (
	EventQuestionCreated  EventType = "question:created"
	EventQuestionUpdated  EventType = "question:updated"
	EventQuestionDeleted  EventType = "question:deleted"
	EventQuestionsCleared EventType = "questions:cleared"
	EventSessionStarted   EventType = "session:started"
	EventSessionEnded     EventType = "session:ended"
)

// QuestionDeleted is the payload of question:deleted
type QuestionDeleted struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
}

// QuestionsCleared is the payload of questions:cleared
type QuestionsCleared struct {
	CourseID string     `json:"courseId"`
	Scope    ClearScope `json:"scope"`
	Deleted  int64      `json:"deleted"`
}
