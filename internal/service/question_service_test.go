package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"vidyavichar/internal/model"
	"vidyavichar/internal/repository"
)

func TestCreateRequiresActiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := CreateQuestionInput{CourseID: "c1", Text: "What is a monad?"}

	if _, err := env.questions.Create(ctx, student, in); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("before start: err = %v, want ErrSessionInactive", err)
	}

	s := env.start(t, "c1")
	q, err := env.questions.Create(ctx, student, in)
	if err != nil {
		t.Fatalf("during session: %v", err)
	}
	if q.SessionID != s.ID || q.CourseID != "c1" || q.StudentID != student.ID {
		t.Errorf("question = %+v", q)
	}
	if q.Status != model.StatusUnanswered || q.Pinned || q.Answer != "" {
		t.Errorf("new question not in initial state: %+v", q)
	}
	if q.Author != model.DefaultAuthor {
		t.Errorf("Author = %q, want %q", q.Author, model.DefaultAuthor)
	}

	if _, err := env.sessions.EndSession(ctx, instructor, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.questions.Create(ctx, student, in); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("after end: err = %v, want ErrSessionInactive", err)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")

	tests := []struct {
		name    string
		caller  model.Caller
		in      CreateQuestionInput
		wantErr error
	}{
		{"instructor", instructor, CreateQuestionInput{CourseID: "c1", Text: "hi"}, ErrForbidden},
		{"blank text", student, CreateQuestionInput{CourseID: "c1", Text: "   "}, ErrValidation},
		{"long text", student, CreateQuestionInput{CourseID: "c1", Text: strings.Repeat("a", MaxQuestionLength+1)}, ErrValidation},
		{"long author", student, CreateQuestionInput{CourseID: "c1", Text: "ok", Author: strings.Repeat("b", MaxAuthorLength+1)}, ErrValidation},
		{"no course", student, CreateQuestionInput{Text: "ok"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.questions.Create(ctx, tt.caller, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	qs, _ := env.questions.List(ctx, "c1", model.QuestionFilter{})
	if len(qs) != 0 {
		t.Errorf("rejected creates stored %d questions", len(qs))
	}
}

func TestCreateTrimsAndKeepsClientRef(t *testing.T) {
	env := newTestEnv(t)
	env.start(t, "c1")

	q, err := env.questions.Create(context.Background(), student, CreateQuestionInput{
		CourseID:  "c1",
		Text:      "  Why is the sky blue?  ",
		Author:    " Asha ",
		ClientRef: "tmp-42",
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.Text != "Why is the sky blue?" || q.Author != "Asha" || q.ClientRef != "tmp-42" {
		t.Errorf("question = %+v", q)
	}
}

func TestUpdateStatusToggles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	q := env.ask(t, "c1", "toggle me")

	steps := []struct {
		set  model.QuestionStatus
		want model.QuestionStatus
	}{
		{model.StatusImportant, model.StatusImportant},
		{model.StatusImportant, model.StatusUnanswered},
		{model.StatusAnswered, model.StatusAnswered},
		{model.StatusImportant, model.StatusImportant},
		{model.StatusImportant, model.StatusUnanswered},
		{model.StatusUnanswered, model.StatusUnanswered},
	}
	for i, step := range steps {
		got, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Status: statusPtr(step.set)})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got.Status != step.want {
			t.Fatalf("step %d: set %s, status = %s, want %s", i, step.set, got.Status, step.want)
		}
	}
}

func TestUpdateAnswerImpliesAnswered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	q := env.ask(t, "c1", "what is 2+2?")

	got, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Answer: strPtr(" four ")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusAnswered || got.Answer != "four" {
		t.Fatalf("after answer: %+v", got)
	}

	// answer wins over a status in the same patch
	got, err = env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{
		Status: statusPtr(model.StatusImportant),
		Answer: strPtr("still four"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusAnswered || got.Answer != "still four" {
		t.Fatalf("answer with status: %+v", got)
	}

	// empty answer clears text and leaves status alone
	got, err = env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Answer: strPtr("")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Answer != "" || got.Status != model.StatusAnswered {
		t.Fatalf("cleared answer: %+v", got)
	}

	stored, _ := env.questionRepo.GetByID(ctx, q.ID)
	if stored.Answer != "" || stored.Status != model.StatusAnswered {
		t.Errorf("stored = %+v", stored)
	}
}

func TestUpdatePinnedIndependentOfStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	q := env.ask(t, "c1", "pin me")

	got, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Pinned: boolPtr(true)})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Pinned || got.Status != model.StatusUnanswered {
		t.Fatalf("pinned: %+v", got)
	}
	got, err = env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Status: statusPtr(model.StatusAnswered)})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Pinned || got.Status != model.StatusAnswered {
		t.Fatalf("status change dropped pin: %+v", got)
	}
}

func TestUpdateRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	q := env.ask(t, "c1", "hello")
	bogus := model.QuestionStatus("archived")

	tests := []struct {
		name    string
		caller  model.Caller
		id      string
		patch   model.QuestionPatch
		wantErr error
	}{
		{"student", student, q.ID, model.QuestionPatch{Pinned: boolPtr(true)}, ErrForbidden},
		{"other instructor", otherInst, q.ID, model.QuestionPatch{Pinned: boolPtr(true)}, ErrForbidden},
		{"unknown id", instructor, "missing", model.QuestionPatch{Pinned: boolPtr(true)}, ErrNotFound},
		{"empty patch", instructor, q.ID, model.QuestionPatch{}, ErrValidation},
		{"bad status", instructor, q.ID, model.QuestionPatch{Status: &bogus}, ErrValidation},
		{"long answer", instructor, q.ID, model.QuestionPatch{Answer: strPtr(strings.Repeat("x", MaxAnswerLength+1))}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.questions.Update(ctx, tt.caller, tt.id, tt.patch); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestModerationAfterSessionEnds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.start(t, "c1")
	q := env.ask(t, "c1", "late question")
	if _, err := env.sessions.EndSession(ctx, instructor, s.ID); err != nil {
		t.Fatal(err)
	}

	got, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Answer: strPtr("after class")})
	if err != nil {
		t.Fatalf("update after end: %v", err)
	}
	if got.SessionID != s.ID {
		t.Errorf("SessionID rewritten to %q", got.SessionID)
	}
	if err := env.questions.Remove(ctx, instructor, q.ID); err != nil {
		t.Fatalf("remove after end: %v", err)
	}
}

func TestRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	q := env.ask(t, "c1", "delete me")

	if err := env.questions.Remove(ctx, student, q.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("student remove: err = %v", err)
	}
	if err := env.questions.Remove(ctx, instructor, q.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.questions.Remove(ctx, instructor, q.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: err = %v, want ErrNotFound", err)
	}
	if stored, _ := env.questionRepo.GetByID(ctx, q.ID); stored != nil {
		t.Errorf("question still stored: %+v", stored)
	}
}

func TestClearScopes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	env.start(t, "c2")

	a1 := env.ask(t, "c1", "answered one")
	a2 := env.ask(t, "c1", "answered two")
	env.ask(t, "c1", "open")
	imp := env.ask(t, "c1", "important")
	other := env.ask(t, "c2", "other course answered")
	for _, id := range []string{a1.ID, a2.ID, other.ID} {
		if _, err := env.questions.Update(ctx, instructor, id, model.QuestionPatch{Answer: strPtr("done")}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.questions.Update(ctx, instructor, imp.ID, model.QuestionPatch{Status: statusPtr(model.StatusImportant)}); err != nil {
		t.Fatal(err)
	}

	n, err := env.questions.Clear(ctx, instructor, "c1", model.ClearAnswered)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("cleared %d answered, want 2", n)
	}
	left, _ := env.questions.List(ctx, "c1", model.QuestionFilter{})
	if len(left) != 2 {
		t.Fatalf("%d left in c1, want 2", len(left))
	}
	for _, q := range left {
		if q.Status == model.StatusAnswered {
			t.Errorf("answered question survived: %+v", q)
		}
	}

	n, err = env.questions.Clear(ctx, instructor, "c1", model.ClearAll)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("cleared %d, want 2", n)
	}
	if left, _ := env.questions.List(ctx, "c1", model.QuestionFilter{}); len(left) != 0 {
		t.Errorf("%d left after clear all", len(left))
	}
	if left, _ := env.questions.List(ctx, "c2", model.QuestionFilter{}); len(left) != 1 {
		t.Errorf("other course touched: %d left", len(left))
	}

	// clearing an empty board succeeds
	if n, err := env.questions.Clear(ctx, instructor, "c1", model.ClearAll); err != nil || n != 0 {
		t.Errorf("empty clear = %d, %v", n, err)
	}
}

func TestClearRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.questions.Clear(ctx, student, "c1", model.ClearAll); !errors.Is(err, ErrForbidden) {
		t.Errorf("student: %v", err)
	}
	if _, err := env.questions.Clear(ctx, instructor, "c3", model.ClearAll); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-owner: %v", err)
	}
	if _, err := env.questions.Clear(ctx, instructor, "c1", model.ClearScope("pinned")); !errors.Is(err, ErrValidation) {
		t.Errorf("bad scope: %v", err)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s1 := env.start(t, "c1")
	first := env.ask(t, "c1", "first")
	s2 := env.start(t, "c1")
	second := env.ask(t, "c1", "second")
	if _, err := env.questions.Update(ctx, instructor, first.ID, model.QuestionPatch{Answer: strPtr("yes")}); err != nil {
		t.Fatal(err)
	}

	all, err := env.questions.List(ctx, "c1", model.QuestionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("List = %v, want newest first", ids(all))
	}

	bySession, _ := env.questions.List(ctx, "c1", model.QuestionFilter{SessionID: s1.ID})
	if len(bySession) != 1 || bySession[0].ID != first.ID {
		t.Errorf("session %s filter = %v", s1.ID, ids(bySession))
	}
	bySession, _ = env.questions.List(ctx, "c1", model.QuestionFilter{SessionID: s2.ID})
	if len(bySession) != 1 || bySession[0].ID != second.ID {
		t.Errorf("session %s filter = %v", s2.ID, ids(bySession))
	}

	answered, _ := env.questions.List(ctx, "c1", model.QuestionFilter{Status: model.StatusAnswered})
	if len(answered) != 1 || answered[0].ID != first.ID {
		t.Errorf("answered filter = %v", ids(answered))
	}

	if _, err := env.questions.List(ctx, "c1", model.QuestionFilter{Status: "nope"}); !errors.Is(err, ErrValidation) {
		t.Errorf("bad status filter: %v", err)
	}

	empty, err := env.questions.List(ctx, "unknown", model.QuestionFilter{})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("unknown course = %v, %v; want empty list", empty, err)
	}
}

func TestListMine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	env.start(t, "c2")
	env.ask(t, "c1", "mine one")
	env.ask(t, "c2", "mine two")
	if _, err := env.questions.Create(ctx, student2, CreateQuestionInput{CourseID: "c1", Text: "not mine"}); err != nil {
		t.Fatal(err)
	}

	mine, err := env.questions.ListMine(ctx, student)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("ListMine = %d questions, want 2", len(mine))
	}
	for _, q := range mine {
		if q.StudentID != student.ID {
			t.Errorf("foreign question in history: %+v", q)
		}
	}
	if _, err := env.questions.ListMine(ctx, instructor); !errors.Is(err, ErrForbidden) {
		t.Errorf("instructor history: %v", err)
	}
}

func TestEveryMutationBroadcastsOnceToCourseRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.start(t, "c1")
	room := model.CourseRoom("c1")

	env.events.reset()
	q := env.ask(t, "c1", "broadcast me")
	if _, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Pinned: boolPtr(true)}); err != nil {
		t.Fatal(err)
	}
	if err := env.questions.Remove(ctx, instructor, q.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.questions.Clear(ctx, instructor, "c1", model.ClearAll); err != nil {
		t.Fatal(err)
	}

	want := []model.EventType{
		model.EventQuestionCreated,
		model.EventQuestionUpdated,
		model.EventQuestionDeleted,
		model.EventQuestionsCleared,
	}
	got := env.events.inRoom(room)
	if len(got) != len(want) {
		t.Fatalf("course room got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i].Type, want[i])
		}
	}
	if del := got[2].Payload.(model.QuestionDeleted); del.ID != q.ID || del.CourseID != "c1" {
		t.Errorf("deleted payload = %+v", del)
	}

	// the session overlay sees the per-question events too
	if n := len(env.events.inRoom(model.SessionRoom(s.ID))); n != 3 {
		t.Errorf("session room got %d events, want 3", n)
	}
	if n := len(env.events.inRoom(model.CourseRoom("c2"))); n != 0 {
		t.Errorf("other course room got %d events", n)
	}

	// failed writes publish nothing
	env.events.reset()
	env.questions.Update(ctx, student, "x", model.QuestionPatch{Pinned: boolPtr(true)})
	env.questions.Create(ctx, student, CreateQuestionInput{CourseID: "c2", Text: "no session"})
	if n := len(env.events.events); n != 0 {
		t.Errorf("failed writes published %d events", n)
	}
}

func TestLectureScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.start(t, "c1")
	q1 := env.ask(t, "c1", "What is a closure?")
	q2 := env.ask(t, "c1", "Is this on the exam?")
	if _, err := env.questions.Update(ctx, instructor, q1.ID, model.QuestionPatch{Answer: strPtr("A function with its environment.")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.questions.Update(ctx, instructor, q2.ID, model.QuestionPatch{Status: statusPtr(model.StatusImportant), Pinned: boolPtr(true)}); err != nil {
		t.Fatal(err)
	}
	if n, err := env.questions.Clear(ctx, instructor, "c1", model.ClearAnswered); err != nil || n != 1 {
		t.Fatalf("clear answered = %d, %v", n, err)
	}
	if _, err := env.sessions.EndSession(ctx, instructor, s1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.questions.Create(ctx, student, CreateQuestionInput{CourseID: "c1", Text: "after class"}); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("create after end: %v", err)
	}

	s2 := env.start(t, "c1")
	q3 := env.ask(t, "c1", "Next week?")

	board, _ := env.questions.List(ctx, "c1", model.QuestionFilter{})
	if len(board) != 2 || board[0].ID != q3.ID || board[1].ID != q2.ID {
		t.Fatalf("board = %v", ids(board))
	}
	if board[1].SessionID != s1.ID || !board[1].Pinned || board[1].Status != model.StatusImportant {
		t.Errorf("carried question = %+v", board[1])
	}
	if board[0].SessionID != s2.ID {
		t.Errorf("new question session = %s, want %s", board[0].SessionID, s2.ID)
	}
}

func ids(qs []*model.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

// runTogether starts every fn at once and waits for all of them
func runTogether(t *testing.T, fns ...func() error) {
	t.Helper()
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, len(fns))
	for _, fn := range fns {
		wg.Add(1)
		go func(fn func() error) {
			defer wg.Done()
			<-start
			errs <- fn()
		}(fn)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestConcurrentPatchesOnOneQuestionAllLand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")

	for i := 0; i < 20; i++ {
		q := env.ask(t, "c1", "race me")
		runTogether(t,
			func() error {
				_, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Pinned: boolPtr(true)})
				return err
			},
			func() error {
				_, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Answer: strPtr("because")})
				return err
			},
		)
		got, _ := env.questionRepo.GetByID(ctx, q.ID)
		if !got.Pinned || got.Status != model.StatusAnswered || got.Answer != "because" || got.Version != 2 {
			t.Fatalf("round %d: lost a write: %+v", i, got)
		}
	}
}

func TestConcurrentStatusTogglesCompose(t *testing.T) {
	tests := []struct {
		togglers int
		want     model.QuestionStatus
	}{
		{2, model.StatusUnanswered},
		{3, model.StatusImportant},
		{8, model.StatusUnanswered},
	}
	for _, tt := range tests {
		env := newTestEnv(t)
		ctx := context.Background()
		env.start(t, "c1")
		q := env.ask(t, "c1", "toggle me")
		env.events.reset()

		fns := make([]func() error, tt.togglers)
		for i := range fns {
			fns[i] = func() error {
				_, err := env.questions.Update(ctx, instructor, q.ID, model.QuestionPatch{Status: statusPtr(model.StatusImportant)})
				return err
			}
		}
		runTogether(t, fns...)

		got, _ := env.questionRepo.GetByID(ctx, q.ID)
		if got.Status != tt.want {
			t.Errorf("%d toggles: status = %s, want %s", tt.togglers, got.Status, tt.want)
		}

		// updates reach the room in the order they were written
		events := env.events.inRoom(model.CourseRoom("c1"))
		if len(events) != tt.togglers {
			t.Fatalf("%d toggles: %d events", tt.togglers, len(events))
		}
		for i, e := range events {
			if v := e.Payload.(*model.Question).Version; v != int64(i+1) {
				t.Errorf("%d toggles: event %d carries version %d", tt.togglers, i, v)
			}
		}
	}
}

// interleavingRepo runs between after each of the first n reads, modelling a writer
// on another instance that lands after the service read the question.
type interleavingRepo struct {
	repository.QuestionRepo
	n       int
	between func(ctx context.Context, id string) error
}

func (r *interleavingRepo) GetByID(ctx context.Context, id string) (*model.Question, error) {
	q, err := r.QuestionRepo.GetByID(ctx, id)
	if err != nil || q == nil || r.n == 0 {
		return q, err
	}
	r.n--
	if err := r.between(ctx, id); err != nil {
		return nil, err
	}
	return q, nil
}

// writeDirect applies change to the stored question, bypassing the service
func writeDirect(repo repository.QuestionRepo, change func(q *model.Question)) func(ctx context.Context, id string) error {
	return func(ctx context.Context, id string) error {
		q, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		change(q)
		return repo.Update(ctx, q)
	}
}

func TestUpdateReappliesPatchAfterInterleavedWrite(t *testing.T) {
	tests := []struct {
		name       string
		other      func(q *model.Question)
		patch      model.QuestionPatch
		wantStatus model.QuestionStatus
		wantPinned bool
	}{
		{
			name:       "pin survives answer",
			other:      func(q *model.Question) { q.Pinned = true },
			patch:      model.QuestionPatch{Answer: strPtr("because")},
			wantStatus: model.StatusAnswered,
			wantPinned: true,
		},
		{
			name:       "toggle sees the other toggle",
			other:      func(q *model.Question) { q.Status = model.StatusImportant },
			patch:      model.QuestionPatch{Status: statusPtr(model.StatusImportant)},
			wantStatus: model.StatusUnanswered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.start(t, "c1")
			q := env.ask(t, "c1", "interleave me")

			repo := &interleavingRepo{QuestionRepo: env.questionRepo, n: 1, between: writeDirect(env.questionRepo, tt.other)}
			svc := NewQuestionService(repo, env.courseRepo, env.sessions)
			svc.SetBroadcaster(env.events)
			env.events.reset()

			got, err := svc.Update(ctx, instructor, q.ID, tt.patch)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != tt.wantStatus || got.Pinned != tt.wantPinned || got.Version != 2 {
				t.Errorf("returned = %+v", got)
			}
			stored, _ := env.questionRepo.GetByID(ctx, q.ID)
			if stored.Status != tt.wantStatus || stored.Pinned != tt.wantPinned {
				t.Errorf("stored = %+v", stored)
			}
			if n := len(env.events.inRoom(model.CourseRoom("c1"))); n != 1 {
				t.Errorf("%d update events, want 1", n)
			}
		})
	}
}

func TestUpdateGivesUpWhenQuestionKeepsChanging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")
	q := env.ask(t, "c1", "busy")

	repo := &interleavingRepo{
		QuestionRepo: env.questionRepo,
		n:            maxUpdateAttempts,
		between:      writeDirect(env.questionRepo, func(q *model.Question) { q.Pinned = !q.Pinned }),
	}
	svc := NewQuestionService(repo, env.courseRepo, env.sessions)
	svc.SetBroadcaster(env.events)
	env.events.reset()

	if _, err := svc.Update(ctx, instructor, q.ID, model.QuestionPatch{Answer: strPtr("x")}); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if n := len(env.events.events); n != 0 {
		t.Errorf("failed update published %d events", n)
	}
	if stored, _ := env.questionRepo.GetByID(ctx, q.ID); stored.Answer != "" {
		t.Errorf("answer written despite conflict: %+v", stored)
	}
}

func TestClearSnapshotAtStorePrecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.start(t, "c1")

	for i := 0; i < 50; i++ {
		q := env.ask(t, "c1", "just in time")
		if !q.CreatedAt.Equal(q.CreatedAt.Truncate(time.Millisecond)) {
			t.Fatalf("createdAt %v finer than the store keeps", q.CreatedAt)
		}

		// asked before the clear, usually within the same millisecond
		n, err := env.questions.Clear(ctx, instructor, "c1", model.ClearAll)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("round %d: cleared %d, want 1", i, n)
		}

		// asked after the clear returned, so never part of its snapshot
		after := env.ask(t, "c1", "right after")
		if got, _ := env.questionRepo.GetByID(ctx, after.ID); got == nil {
			t.Fatalf("round %d: question asked after clear is gone", i)
		}
		if err := env.questions.Remove(ctx, instructor, after.ID); err != nil {
			t.Fatal(err)
		}
	}
}
