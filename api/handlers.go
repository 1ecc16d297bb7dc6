package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/lectern/client"
)

// ListTopics handles GET /topics.
func (s *Server) ListTopics(w http.ResponseWriter, r *http.Request) {
	page, err := s.content.Topics(r.Context(), parseTopicFilter(r))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// TopicsWithCounts handles GET /topics/with-counts.
func (s *Server) TopicsWithCounts(w http.ResponseWriter, r *http.Request) {
	page, err := s.content.TopicsWithCounts(r.Context(), parseTopicFilter(r))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetTopic handles GET /topics/{id}.
func (s *Server) GetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.content.Topic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

// AdminListTopics handles GET /admin/topics.
func (s *Server) AdminListTopics(w http.ResponseWriter, r *http.Request) {
	page, err := s.content.AdminTopics(r.Context(), parseTopicFilter(r))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateTopic handles POST /admin/topics.
func (s *Server) CreateTopic(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[client.TopicInput](w, r, maxContentBodySize)
	if !ok {
		return
	}
	topic, err := s.content.CreateTopic(r.Context(), in)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, topic)
}

// UpdateTopic handles PUT /admin/topics/{id}.
func (s *Server) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[client.TopicInput](w, r, maxContentBodySize)
	if !ok {
		return
	}
	topic, err := s.content.UpdateTopic(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

// DeleteTopic handles DELETE /admin/topics/{id}.
func (s *Server) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeleteTopic(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleTopicStatus handles POST /admin/topics/{id}/toggle-status.
func (s *Server) ToggleTopicStatus(w http.ResponseWriter, r *http.Request) {
	topic, err := s.content.ToggleTopicStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

// ListQuestions handles GET /questions.
func (s *Server) ListQuestions(w http.ResponseWriter, r *http.Request) {
	page, err := s.content.Questions(r.Context(), parseQuestionFilter(r))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetQuestion handles GET /questions/{id}.
func (s *Server) GetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.content.Question(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// CreateQuestion handles POST /questions.
func (s *Server) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[client.QuestionInput](w, r, maxContentBodySize)
	if !ok {
		return
	}
	q, err := s.content.CreateQuestion(r.Context(), in)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// UpdateQuestion handles PUT /questions/{id}.
func (s *Server) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[client.QuestionInput](w, r, maxContentBodySize)
	if !ok {
		return
	}
	q, err := s.content.UpdateQuestion(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// DeleteQuestion handles DELETE /questions/{id}.
func (s *Server) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddAnswer handles POST /questions/{id}/answers.
func (s *Server) AddAnswer(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[client.AnswerInput](w, r, maxContentBodySize)
	if !ok {
		return
	}
	a, err := s.content.AddAnswer(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAnswer handles PUT /questions/{id}/answers/{answerID}.
func (s *Server) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeJSON[client.AnswerInput](w, r, maxContentBodySize)
	if !ok {
		return
	}
	a, err := s.content.UpdateAnswer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "answerID"), in)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnswer handles DELETE /questions/{id}/answers/{answerID}.
func (s *Server) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeleteAnswer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "answerID")); err != nil {
		s.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
