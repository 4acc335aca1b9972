package service

import (
	"context"
	"sync"
	"testing"

	"vidyavichar/internal/model"
	"vidyavichar/internal/repository"
)

type publishedEvent struct {
	Room    string
	Type    model.EventType
	Payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBroadcaster) Publish(room string, eventType model.EventType, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Room: room, Type: eventType, Payload: payload})
}

// inRoom returns the events published to room, in order
func (b *recordingBroadcaster) inRoom(room string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.events {
		if e.Room == room {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

var (
	instructor = model.Caller{ID: "inst-1", Role: model.RoleInstructor}
	otherInst  = model.Caller{ID: "inst-2", Role: model.RoleInstructor}
	student    = model.Caller{ID: "stu-1", Role: model.RoleStudent}
	student2   = model.Caller{ID: "stu-2", Role: model.RoleStudent}
)

type testEnv struct {
	sessionRepo  repository.SessionRepo
	questionRepo repository.QuestionRepo
	courseRepo   repository.CourseRepo
	sessions     *SessionService
	questions    *QuestionService
	events       *recordingBroadcaster
}

// newTestEnv wires both services over memory stores with courses c1 and c2 owned by
// instructor and c3 owned by otherInst.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		sessionRepo:  repository.NewMemorySessionRepo(),
		questionRepo: repository.NewMemoryQuestionRepo(),
		courseRepo:   repository.NewMemoryCourseRepo(),
		events:       &recordingBroadcaster{},
	}
	for _, c := range []*model.Course{
		{ID: "c1", Name: "Course One", InstructorID: instructor.ID},
		{ID: "c2", Name: "Course Two", InstructorID: instructor.ID},
		{ID: "c3", Name: "Course Three", InstructorID: otherInst.ID},
	} {
		if err := env.courseRepo.Create(context.Background(), c); err != nil {
			t.Fatalf("seed course: %v", err)
		}
	}

	env.sessions = NewSessionService(env.sessionRepo, env.courseRepo, nil, nil)
	env.questions = NewQuestionService(env.questionRepo, env.courseRepo, env.sessions)
	env.sessions.SetBroadcaster(env.events)
	env.questions.SetBroadcaster(env.events)
	return env
}

func (e *testEnv) start(t *testing.T, courseID string) *model.Session {
	t.Helper()
	s, err := e.sessions.StartSession(context.Background(), instructor, courseID, "lecture")
	if err != nil {
		t.Fatalf("StartSession(%s): %v", courseID, err)
	}
	return s
}

func (e *testEnv) ask(t *testing.T, courseID, text string) *model.Question {
	t.Helper()
	q, err := e.questions.Create(context.Background(), student, CreateQuestionInput{CourseID: courseID, Text: text})
	if err != nil {
		t.Fatalf("Create(%q): %v", text, err)
	}
	return q
}

func statusPtr(s model.QuestionStatus) *model.QuestionStatus { return &s }
func boolPtr(b bool) *bool                                   { return &b }
func strPtr(s string) *string                                { return &s }
