package handler

import (
	"net/http"

	"vidyavichar/internal/model"
	"vidyavichar/internal/service"

	"github.com/gorilla/mux"
)

// QuestionHandler handles question board endpoints
type QuestionHandler struct {
	questionSvc *service.QuestionService
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(questionSvc *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionSvc: questionSvc}
}

// CreateQuestionRequest is the request body for asking a question
type CreateQuestionRequest struct {
	Text      string `json:"text" validate:"required,max=2000"`
	Author    string `json:"author,omitempty" validate:"max=80"`
	ClientRef string `json:"clientRef,omitempty" validate:"max=64"`
}

// UpdateQuestionRequest is the request body for moderating a question
type UpdateQuestionRequest struct {
	Status *model.QuestionStatus `json:"status,omitempty" validate:"omitempty,oneof=unanswered answered important"`
	Pinned *bool                 `json:"pinned,omitempty"`
	Answer *string               `json:"answer,omitempty" validate:"omitempty,max=4000"`
}

// ClearQuestionsRequest is the request body for a bulk clear
type ClearQuestionsRequest struct {
	Scope model.ClearScope `json:"scope" validate:"required,oneof=answered all"`
}

// List handles GET /v1/courses/{courseId}/questions
func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerOrReject(w, r); !ok {
		return
	}
	courseID := mux.Vars(r)["courseId"]
	q := r.URL.Query()

	filter := model.QuestionFilter{
		SessionID: q.Get("sessionId"),
		Status:    model.QuestionStatus(q.Get("status")),
	}

	questions, err := h.questionSvc.List(r.Context(), courseID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, questions)
}

// Mine handles GET /v1/questions/mine
func (h *QuestionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	questions, err := h.questionSvc.ListMine(r.Context(), caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, questions)
}

// Create handles POST /v1/courses/{courseId}/questions
func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	var req CreateQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	question, err := h.questionSvc.Create(r.Context(), caller, service.CreateQuestionInput{
		CourseID:  mux.Vars(r)["courseId"],
		Text:      req.Text,
		Author:    req.Author,
		ClientRef: req.ClientRef,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, question)
}

// Update handles PATCH /v1/questions/{id}
func (h *QuestionHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	var req UpdateQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	question, err := h.questionSvc.Update(r.Context(), caller, mux.Vars(r)["id"], model.QuestionPatch{
		Status: req.Status,
		Pinned: req.Pinned,
		Answer: req.Answer,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, question)
}

// Delete handles DELETE /v1/questions/{id}
func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if err := h.questionSvc.Remove(r.Context(), caller, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// Clear handles POST /v1/courses/{courseId}/questions/clear
func (h *QuestionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	var req ClearQuestionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deleted, err := h.questionSvc.Clear(r.Context(), caller, mux.Vars(r)["courseId"], req.Scope)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope":   req.Scope,
		"deleted": deleted,
	})
}
