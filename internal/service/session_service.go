package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"vidyavichar/internal/cache"
	"vidyavichar/internal/model"
	"vidyavichar/internal/repository"
)

const maxSessionTitleLength = 200

// SessionService is the session registry: it owns the Active → Ended lifecycle
// and the one-active-session-per-course rule.
type SessionService struct {
	sessionRepo  repository.SessionRepo
	courseRepo   repository.CourseRepo
	sessionCache cache.SessionCache
	locker       Locker
	broadcaster  Broadcaster
}

// NewSessionService creates a new session service. sessionCache may be nil.
func NewSessionService(
	sessionRepo repository.SessionRepo,
	courseRepo repository.CourseRepo,
	sessionCache cache.SessionCache,
	locker Locker,
) *SessionService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &SessionService{
		sessionRepo:  sessionRepo,
		courseRepo:   courseRepo,
		sessionCache: sessionCache,
		locker:       locker,
		broadcaster:  noopBroadcaster{},
	}
}

// SetBroadcaster sets the broadcaster for realtime events
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	if b == nil {
		b = noopBroadcaster{}
	}
	s.broadcaster = b
}

// StartSession ends any active session of the course and opens a new one
func (s *SessionService) StartSession(ctx context.Context, caller model.Caller, courseID, title string) (*model.Session, error) {
	if !caller.IsInstructor() {
		return nil, fmt.Errorf("%w: only instructors can start sessions", ErrForbidden)
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, fmt.Errorf("%w: courseId is required", ErrValidation)
	}
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxSessionTitleLength {
		return nil, fmt.Errorf("%w: title is longer than %d characters", ErrValidation, maxSessionTitleLength)
	}

	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("%w: course %s", ErrNotFound, courseID)
	}
	if !course.OwnedBy(caller.ID) {
		return nil, fmt.Errorf("%w: not the course instructor", ErrForbidden)
	}

	unlock, err := s.locker.Lock(ctx, courseLockKey(courseID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock course: %w", err)
	}
	defer unlock()

	session := &model.Session{
		CourseID:     courseID,
		InstructorID: caller.ID,
		Title:        title,
		StartTime:    time.Now(),
		IsActive:     true,
	}

	ended, err := s.sessionRepo.Start(ctx, session)
	// sessions ended before a failed insert are already durable
	for _, prev := range ended {
		s.publishSession(model.EventSessionEnded, prev)
	}
	if err != nil {
		s.clearCache(ctx, courseID)
		if errors.Is(err, repository.ErrActiveSessionExists) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	if s.sessionCache != nil {
		if err := s.sessionCache.SetActive(ctx, session); err != nil {
			log.Printf("session: cache set for course %s: %v", courseID, err)
		}
	}

	log.Printf("session: %s started for course %s (ended %d)", session.ID, courseID, len(ended))
	s.publishSession(model.EventSessionStarted, session)
	return session, nil
}

// EndSession ends a session owned by the caller.
// An already ended session is returned together with ErrAlreadyEnded.
func (s *SessionService) EndSession(ctx context.Context, caller model.Caller, sessionID string) (*model.Session, error) {
	if !caller.IsInstructor() {
		return nil, fmt.Errorf("%w: only instructors can end sessions", ErrForbidden)
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil || session.InstructorID != caller.ID {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if !session.IsActive {
		return session, ErrAlreadyEnded
	}

	unlock, err := s.locker.Lock(ctx, courseLockKey(session.CourseID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock course: %w", err)
	}
	defer unlock()

	ended, err := s.sessionRepo.End(ctx, sessionID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	if ended == nil {
		// superseded or ended by a concurrent request after our read
		current, err := s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if current == nil {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return current, ErrAlreadyEnded
	}

	s.clearCache(ctx, ended.CourseID)

	log.Printf("session: %s ended for course %s", ended.ID, ended.CourseID)
	s.publishSession(model.EventSessionEnded, ended)
	return ended, nil
}

// GetActiveSession returns the course's active session or nil
func (s *SessionService) GetActiveSession(ctx context.Context, courseID string) (*model.Session, error) {
	if s.sessionCache != nil {
		cached, err := s.sessionCache.GetActive(ctx, courseID)
		if err != nil {
			log.Printf("session: cache get for course %s: %v", courseID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	if s.sessionCache == nil {
		return s.loadActive(ctx, courseID)
	}

	// fill under the course lock so an end in flight cannot be overwritten with a stale entry
	unlock, err := s.locker.Lock(ctx, courseLockKey(courseID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock course: %w", err)
	}
	defer unlock()

	session, err := s.loadActive(ctx, courseID)
	if err != nil || session == nil {
		return session, err
	}
	if err := s.sessionCache.SetActive(ctx, session); err != nil {
		log.Printf("session: cache set for course %s: %v", courseID, err)
	}
	return session, nil
}

func (s *SessionService) loadActive(ctx context.Context, courseID string) (*model.Session, error) {
	session, err := s.sessionRepo.GetActive(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return session, nil
}

// ListSessions returns the course's sessions, newest first
func (s *SessionService) ListSessions(ctx context.Context, courseID string) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) clearCache(ctx context.Context, courseID string) {
	if s.sessionCache == nil {
		return
	}
	if err := s.sessionCache.ClearActive(ctx, courseID); err != nil {
		log.Printf("session: cache clear for course %s: %v", courseID, err)
	}
}

func (s *SessionService) publishSession(eventType model.EventType, session *model.Session) {
	s.broadcaster.Publish(model.CourseRoom(session.CourseID), eventType, session)
	s.broadcaster.Publish(model.SessionRoom(session.ID), eventType, session)
}
