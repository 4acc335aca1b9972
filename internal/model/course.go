package model

import "time"

// Course is owned by the course directory; the board only reads it for ownership checks.
type Course struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Name         string    `json:"name" bson:"name"`
	Code         string    `json:"code,omitempty" bson:"code,omitempty"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	InstructorID string    `json:"instructorId" bson:"instructorId"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// OwnedBy reports whether the given instructor owns the course
func (c *Course) OwnedBy(instructorID string) bool {
	return c != nil && instructorID != "" && c.InstructorID == instructorID
}
