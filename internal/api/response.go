// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/zeepseek/homescout/internal/logging"
)

// APIError is the error payload returned by every failing endpoint.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// respondJSON writes a JSON response body with proper headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError writes a JSON error response and logs the underlying
// cause when one exists.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("api error")
	}
	respondJSON(w, status, errorResponse{Error: APIError{Code: code, Message: message}})
}
