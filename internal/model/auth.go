package model

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleInstructor
}

// Caller is the authenticated identity behind a request
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (c Caller) IsStudent() bool    { return c.Role == RoleStudent }
func (c Caller) IsInstructor() bool { return c.Role == RoleInstructor }

// UserClaims are JWT claims issued by the identity provider
type UserClaims struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Caller converts verified claims into the request identity
func (c *UserClaims) Caller() Caller {
	return Caller{ID: c.UserID, Role: c.Role}
}

// ClassifyRole assigns a role once, when an identity is created.
// Addresses under one of the student domains are students, everyone else is an instructor.
func ClassifyRole(email string, studentDomains []string) Role {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return RoleInstructor
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	for _, d := range studentDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && domain == d {
			return RoleStudent
		}
	}
	return RoleInstructor
}
