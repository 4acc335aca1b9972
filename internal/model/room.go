package model

import "strings"

const (
	coursePrefix  = "course:"
	sessionPrefix = "session:"
)

// CourseRoom is the canonical broadcast room for a course
func CourseRoom(courseID string) string {
	return coursePrefix + courseID
}

// SessionRoom is the finer-grained overlay room for a single session
func SessionRoom(sessionID string) string {
	return sessionPrefix + sessionID
}

// ValidRoom reports whether name is a course or session room with a non-empty id
func ValidRoom(name string) bool {
	for _, p := range []string{coursePrefix, sessionPrefix} {
		if strings.HasPrefix(name, p) {
			id := strings.TrimPrefix(name, p)
			return id != "" && !strings.ContainsAny(id, " \t\r\n")
		}
	}
	return false
}
