package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"colorflow-server/internal/ai"
)

// aiTextHandler proxies a prompt to the generative backend. The rate
// limiter is checked explicitly before anything else touches the upstream.
func (s *Server) aiTextHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	if !s.aiLimiter.Allow(callerKey(r)) {
		respondError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down")
		return
	}

	var req AITextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return
	}

	if err := ValidatePrompt(req.Prompt); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_prompt", err.Error())
		return
	}

	if s.generator == nil {
		respondError(w, http.StatusInternalServerError, "not_configured", "AI backend is not configured")
		return
	}

	result, err := s.generator.Generate(r.Context(), ai.Params{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		if errors.Is(err, ai.ErrRateLimited) {
			respondError(w, http.StatusTooManyRequests, "upstream_rate_limited", "AI backend is rate limiting, try again shortly")
			return
		}
		log.Printf("AI generation failed: %v", err)
		respondError(w, http.StatusInternalServerError, "generation_failed", "AI backend request failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, AITextResponse{
		Success: true,
		Result:  result,
	})
}
