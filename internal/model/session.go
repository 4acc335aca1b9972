package model

import "time"

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Session is one instructor-declared live period for a course.
// It starts Active and can only move to Ended.
type Session struct {
	ID           string     `json:"id" bson:"_id,omitempty"`
	CourseID     string     `json:"courseId" bson:"courseId"`
	InstructorID string     `json:"instructorId" bson:"instructorId"`
	Title        string     `json:"title,omitempty" bson:"title,omitempty"`
	StartTime    time.Time  `json:"startTime" bson:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty" bson:"endTime,omitempty"`
	IsActive     bool       `json:"isActive" bson:"isActive"`
}

// Status reports the state machine position of the session
func (s *Session) Status() SessionStatus {
	if s.IsActive {
		return SessionActive
	}
	return SessionEnded
}

// End moves an active session to Ended, stamping the end time
func (s *Session) End(at time.Time) {
	s.IsActive = false
	s.EndTime = &at
}
