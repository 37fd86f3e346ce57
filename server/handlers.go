package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/sourceqa/chains"
	"github.com/sevigo/sourceqa/schema"
)

const maxBodyBytes = 8 << 20

type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

type AskResponse struct {
	Answer          string            `json:"answer"`
	Sources         string            `json:"sources"`
	SourceList      []string          `json:"source_list"`
	SourceDocuments []schema.Document `json:"source_documents,omitempty"`
}

type DocumentPayload struct {
	PageContent string         `json:"page_content" validate:"required"`
	Metadata    map[string]any `json:"metadata"`
}

type AddDocumentsRequest struct {
	Documents []DocumentPayload `json:"documents" validate:"required,min=1,dive"`
}

type AddDocumentsResponse struct {
	IDs []string `json:"ids"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AskRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.qa.Call(ctx, map[string]any{s.qa.InputKeys()[0]: req.Question})
	if err != nil {
		if errors.Is(err, chains.ErrMissingInput) || errors.Is(err, chains.ErrInvalidInputType) {
			s.respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.ErrorContext(ctx, "Question answering failed", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to answer question")
		return
	}

	answer, _ := out[chains.AnswerKey].(string)
	sources, _ := out[chains.SourcesKey].(string)
	resp := AskResponse{
		Answer:     answer,
		Sources:    sources,
		SourceList: chains.ParseSources(sources),
	}
	if docs, ok := out[chains.SourceDocumentsKey].([]schema.Document); ok {
		resp.SourceDocuments = docs
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AddDocumentsRequest
	if !s.decode(w, r, &req) {
		return
	}

	docs := make([]schema.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, schema.NewDocument(d.PageContent, d.Metadata))
	}

	ids, err := s.store.AddDocuments(ctx, docs)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to add documents", "count", len(docs), "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to store documents")
		return
	}

	s.logger.InfoContext(ctx, "Documents added", "count", len(ids))
	respondJSON(w, http.StatusCreated, AddDocumentsResponse{IDs: ids})
}

// decode reads and validates a JSON body, writing a 400 response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, errorResponse{
		Error:     code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
