package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fakturo/fakturo/internal/httpx"
	"github.com/fakturo/fakturo/internal/services"
)

// idFromPath parses the {id} path segment on resource routes.
func idFromPath(r *http.Request) (uint, bool) {
	return parseID(r.PathValue("id"))
}

// queryUint parses a positive integer query parameter.
func queryUint(r *http.Request, name string) (uint, bool) {
	return parseID(r.URL.Query().Get(name))
}

func parseID(raw string) (uint, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// writeServiceError maps service error kinds to HTTP responses. Unknown
// errors surface as a generic failure without leaking internals.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Fields)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict", nil)
	case errors.Is(err, services.ErrInvalidSignature):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_signature", nil)
	case errors.Is(err, services.ErrDelivery):
		httpx.JSONError(w, http.StatusBadGateway, "delivery_failed", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
