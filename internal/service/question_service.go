package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"vidyavichar/internal/model"
	"vidyavichar/internal/repository"
)

const (
	MaxQuestionLength  = 2000
	MaxAuthorLength    = 80
	MaxAnswerLength    = 4000
	MaxClientRefLength = 64

	// maxUpdateAttempts bounds re-reads when another writer bumps the version
	maxUpdateAttempts = 5
)

// CreateQuestionInput is what a student submits
type CreateQuestionInput struct {
	CourseID  string
	Text      string
	Author    string
	ClientRef string
}

// QuestionService is the question store. Writes are gated by the session registry
// and by caller role; every successful write is broadcast to the course room.
type QuestionService struct {
	questionRepo repository.QuestionRepo
	courseRepo   repository.CourseRepo
	sessions     *SessionService
	locker       Locker
	broadcaster  Broadcaster
}

// NewQuestionService creates a new question service
func NewQuestionService(
	questionRepo repository.QuestionRepo,
	courseRepo repository.CourseRepo,
	sessions *SessionService,
) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		courseRepo:   courseRepo,
		sessions:     sessions,
		locker:       sessions.locker,
		broadcaster:  noopBroadcaster{},
	}
}

// SetBroadcaster sets the broadcaster for realtime events
func (s *QuestionService) SetBroadcaster(b Broadcaster) {
	if b == nil {
		b = noopBroadcaster{}
	}
	s.broadcaster = b
}

// List returns the course's questions, newest first
func (s *QuestionService) List(ctx context.Context, courseID string, filter model.QuestionFilter) ([]*model.Question, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	questions, err := s.questionRepo.ListByCourse(ctx, courseID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// ListMine returns the calling student's own questions across courses
func (s *QuestionService) ListMine(ctx context.Context, caller model.Caller) ([]*model.Question, error) {
	if !caller.IsStudent() {
		return nil, fmt.Errorf("%w: only students have a question history", ErrForbidden)
	}
	questions, err := s.questionRepo.ListByStudent(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// Create adds a question to the course's active session
func (s *QuestionService) Create(ctx context.Context, caller model.Caller, in CreateQuestionInput) (*model.Question, error) {
	if !caller.IsStudent() {
		return nil, fmt.Errorf("%w: only students can ask questions", ErrForbidden)
	}

	text := strings.TrimSpace(in.Text)
	author := strings.TrimSpace(in.Author)
	clientRef := strings.TrimSpace(in.ClientRef)
	switch {
	case strings.TrimSpace(in.CourseID) == "":
		return nil, fmt.Errorf("%w: courseId is required", ErrValidation)
	case text == "":
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	case utf8.RuneCountInString(text) > MaxQuestionLength:
		return nil, fmt.Errorf("%w: text is longer than %d characters", ErrValidation, MaxQuestionLength)
	case utf8.RuneCountInString(author) > MaxAuthorLength:
		return nil, fmt.Errorf("%w: author is longer than %d characters", ErrValidation, MaxAuthorLength)
	case len(clientRef) > MaxClientRefLength:
		return nil, fmt.Errorf("%w: clientRef is longer than %d bytes", ErrValidation, MaxClientRefLength)
	}
	if author == "" {
		author = model.DefaultAuthor
	}

	session, err := s.sessions.GetActiveSession(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionInactive
	}

	now := storeTime()
	question := &model.Question{
		Text:      text,
		Author:    author,
		CourseID:  in.CourseID,
		SessionID: session.ID,
		StudentID: caller.ID,
		Status:    model.StatusUnanswered,
		Pinned:    false,
		ClientRef: clientRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.publishQuestion(model.EventQuestionCreated, question)
	return question, nil
}

// Update applies an instructor patch. Status toggles back to unanswered when set twice;
// a non-empty answer always leaves the question answered. The patch is applied to the
// stored version it was read from; a concurrent write forces a re-read.
func (s *QuestionService) Update(ctx context.Context, caller model.Caller, id string, patch model.QuestionPatch) (*model.Question, error) {
	unlock, err := s.locker.Lock(ctx, questionLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock question: %w", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		question, err := s.getForInstructor(ctx, caller, id)
		if err != nil {
			return nil, err
		}

		if patch.Empty() {
			return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
		}
		if patch.Status != nil && !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *patch.Status)
		}
		if patch.Answer != nil && utf8.RuneCountInString(strings.TrimSpace(*patch.Answer)) > MaxAnswerLength {
			return nil, fmt.Errorf("%w: answer is longer than %d characters", ErrValidation, MaxAnswerLength)
		}

		applyPatch(question, patch)
		question.UpdatedAt = storeTime()

		err = s.questionRepo.Update(ctx, question)
		switch {
		case err == nil:
			s.publishQuestion(model.EventQuestionUpdated, question)
			return question, nil
		case errors.Is(err, repository.ErrVersionConflict):
			if attempt == maxUpdateAttempts {
				return nil, fmt.Errorf("%w: question %s keeps changing", ErrConflict, id)
			}
			log.Printf("question: %s changed under update, retrying (attempt %d)", id, attempt)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: question %s", ErrNotFound, id)
		default:
			return nil, fmt.Errorf("failed to update question: %w", err)
		}
	}
}

// Remove deletes a single question
func (s *QuestionService) Remove(ctx context.Context, caller model.Caller, id string) error {
	unlock, err := s.locker.Lock(ctx, questionLockKey(id))
	if err != nil {
		return fmt.Errorf("failed to lock question: %w", err)
	}
	defer unlock()

	question, err := s.getForInstructor(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := s.questionRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: question %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}

	payload := model.QuestionDeleted{ID: question.ID, CourseID: question.CourseID}
	s.broadcaster.Publish(model.CourseRoom(question.CourseID), model.EventQuestionDeleted, payload)
	if question.SessionID != "" {
		s.broadcaster.Publish(model.SessionRoom(question.SessionID), model.EventQuestionDeleted, payload)
	}
	return nil
}

// Clear bulk-deletes the course's questions matching scope. Only questions created
// before the clear started are removed; one aggregate event is broadcast.
func (s *QuestionService) Clear(ctx context.Context, caller model.Caller, courseID string, scope model.ClearScope) (int64, error) {
	if err := s.authorizeCourse(ctx, caller, courseID); err != nil {
		return 0, err
	}
	if !scope.Valid() {
		return 0, fmt.Errorf("%w: scope must be %q or %q", ErrValidation, model.ClearAnswered, model.ClearAll)
	}

	var status model.QuestionStatus
	if scope == model.ClearAnswered {
		status = model.StatusAnswered
	}

	// the store keeps milliseconds: every question stamped in the snapshot millisecond
	// was created before the delete runs once that millisecond has passed
	snapshot := storeTime()
	time.Sleep(time.Until(snapshot.Add(time.Millisecond)))

	deleted, err := s.questionRepo.DeleteByCourse(ctx, courseID, status, snapshot)
	if err != nil {
		return 0, fmt.Errorf("failed to clear questions: %w", err)
	}

	log.Printf("question: cleared %d %s questions in course %s", deleted, scope, courseID)
	s.broadcaster.Publish(model.CourseRoom(courseID), model.EventQuestionsCleared, model.QuestionsCleared{
		CourseID: courseID,
		Scope:    scope,
		Deleted:  deleted,
	})
	return deleted, nil
}

// storeTime is the current time at the precision Mongo keeps
func storeTime() time.Time {
	return time.Now().Truncate(time.Millisecond)
}

func applyPatch(q *model.Question, patch model.QuestionPatch) {
	if patch.Status != nil {
		if q.Status == *patch.Status {
			q.Status = model.StatusUnanswered
		} else {
			q.Status = *patch.Status
		}
	}
	if patch.Pinned != nil {
		q.Pinned = *patch.Pinned
	}
	if patch.Answer != nil {
		q.Answer = strings.TrimSpace(*patch.Answer)
		if q.Answer != "" {
			q.Status = model.StatusAnswered
		}
	}
}

func (s *QuestionService) getForInstructor(ctx context.Context, caller model.Caller, id string) (*model.Question, error) {
	question, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if question == nil {
		return nil, fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	if err := s.authorizeCourse(ctx, caller, question.CourseID); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuestionService) authorizeCourse(ctx context.Context, caller model.Caller, courseID string) error {
	if !caller.IsInstructor() {
		return fmt.Errorf("%w: only instructors can moderate questions", ErrForbidden)
	}
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return fmt.Errorf("%w: course %s", ErrNotFound, courseID)
	}
	if !course.OwnedBy(caller.ID) {
		return fmt.Errorf("%w: not the course instructor", ErrForbidden)
	}
	return nil
}

func (s *QuestionService) publishQuestion(eventType model.EventType, q *model.Question) {
	s.broadcaster.Publish(model.CourseRoom(q.CourseID), eventType, q)
	if q.SessionID != "" {
		s.broadcaster.Publish(model.SessionRoom(q.SessionID), eventType, q)
	}
}
