// Package httpjson renders JSON HTTP responses.
package httpjson

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Render writes v as a JSON response with status 200.
func Render(w http.ResponseWriter, v interface{}) {
	RenderStatus(w, http.StatusOK, v)
}

// RenderStatus writes v as a JSON response with the given status code.
func RenderStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("marshaling JSON response")
		http.Error(w, `{"error": "An internal error occurred while processing this request."}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err = w.Write(body); err != nil {
		log.WithError(err).Error("writing JSON response")
	}
}
