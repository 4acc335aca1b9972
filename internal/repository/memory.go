package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"vidyavichar/internal/model"

	"github.com/google/uuid"
)

// In-memory implementations for STORE_DRIVER=memory and tests.
// Records are copied on the way in and out so callers never share state with the store.

type memorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

func NewMemorySessionRepo() SessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *memorySessionRepo) Start(_ context.Context, session *model.Session) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ended []*model.Session
	for _, s := range r.sessions {
		if s.CourseID == session.CourseID && s.IsActive {
			s.End(session.StartTime)
			ended = append(ended, cloneSession(s))
		}
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.IsActive = true
	session.EndTime = nil
	r.sessions[session.ID] = cloneSession(session)
	return ended, nil
}

func (r *memorySessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[id]; ok {
		return cloneSession(s), nil
	}
	return nil, nil
}

func (r *memorySessionRepo) GetActive(_ context.Context, courseID string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.CourseID == courseID && s.IsActive {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

func (r *memorySessionRepo) End(_ context.Context, id string, at time.Time) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive {
		return nil, nil
	}
	s.End(at)
	return cloneSession(s), nil
}

func (r *memorySessionRepo) ListByCourse(_ context.Context, courseID string) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := []*model.Session{}
	for _, s := range r.sessions {
		if s.CourseID == courseID {
			sessions = append(sessions, cloneSession(s))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.After(sessions[j].StartTime)
		}
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return &c
}

type memoryQuestionRepo struct {
	mu        sync.RWMutex
	questions map[string]*model.Question
	// insertion order breaks createdAt ties, as ObjectIDs do in Mongo
	seq  map[string]uint64
	next uint64
}

func NewMemoryQuestionRepo() QuestionRepo {
	return &memoryQuestionRepo{
		questions: make(map[string]*model.Question),
		seq:       make(map[string]uint64),
	}
}

func (r *memoryQuestionRepo) Create(_ context.Context, question *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	c := *question
	r.questions[question.ID] = &c
	r.next++
	r.seq[question.ID] = r.next
	return nil
}

func (r *memoryQuestionRepo) GetByID(_ context.Context, id string) (*model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if q, ok := r.questions[id]; ok {
		c := *q
		return &c, nil
	}
	return nil, nil
}

func (r *memoryQuestionRepo) Update(_ context.Context, question *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[question.ID]
	if !ok {
		return ErrNotFound
	}
	if q.Version != question.Version {
		return ErrVersionConflict
	}
	question.Version++
	q.Version = question.Version
	q.Status = question.Status
	q.Pinned = question.Pinned
	q.Answer = question.Answer
	q.UpdatedAt = question.UpdatedAt
	return nil
}

func (r *memoryQuestionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[id]; !ok {
		return ErrNotFound
	}
	delete(r.questions, id)
	delete(r.seq, id)
	return nil
}

func (r *memoryQuestionRepo) ListByCourse(_ context.Context, courseID string, filter model.QuestionFilter) ([]*model.Question, error) {
	return r.list(func(q *model.Question) bool {
		if q.CourseID != courseID {
			return false
		}
		if filter.SessionID != "" && q.SessionID != filter.SessionID {
			return false
		}
		return filter.Status == "" || q.Status == filter.Status
	}), nil
}

func (r *memoryQuestionRepo) ListByStudent(_ context.Context, studentID string) ([]*model.Question, error) {
	return r.list(func(q *model.Question) bool {
		return q.StudentID == studentID
	}), nil
}

func (r *memoryQuestionRepo) DeleteByCourse(_ context.Context, courseID string, status model.QuestionStatus, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, q := range r.questions {
		if q.CourseID != courseID || q.CreatedAt.After(before) {
			continue
		}
		if status != "" && q.Status != status {
			continue
		}
		delete(r.questions, id)
		delete(r.seq, id)
		n++
	}
	return n, nil
}

func (r *memoryQuestionRepo) list(match func(*model.Question) bool) []*model.Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	questions := []*model.Question{}
	for _, q := range r.questions {
		if match(q) {
			c := *q
			questions = append(questions, &c)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if !questions[i].CreatedAt.Equal(questions[j].CreatedAt) {
			return questions[i].CreatedAt.After(questions[j].CreatedAt)
		}
		return r.seq[questions[i].ID] > r.seq[questions[j].ID]
	})
	return questions
}

type memoryCourseRepo struct {
	mu      sync.RWMutex
	courses map[string]*model.Course
}

func NewMemoryCourseRepo() CourseRepo {
	return &memoryCourseRepo{courses: make(map[string]*model.Course)}
}

func (r *memoryCourseRepo) Create(_ context.Context, course *model.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now()
	}
	c := *course
	r.courses[course.ID] = &c
	return nil
}

func (r *memoryCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.courses[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, nil
}
