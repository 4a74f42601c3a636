package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const maxAskBodyBytes = 64 << 10

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Asker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body is too large", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	outcome := deps.Asker.Ask(r.Context(), question)
	switch {
	case !outcome.Failed():
		writeJSON(w, http.StatusOK, outcome)
	case outcome.GenerationFailed():
		writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", outcome.Err.Error(), true, map[string]any{"question": question})
	default:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "QUERY_FAILED", outcome.Err.Error(), false, map[string]any{"question": question})
	}
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema description is not configured", false, nil)
		return
	}
	tables := deps.Tables
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": deps.Schema(), "tables": tables})
}
