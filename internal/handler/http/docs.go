package http

import (
	"net/http"
	"os"
)

// ServeOpenAPISpec serves the OpenAPI JSON document from disk
func ServeOpenAPISpec(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(path); err != nil {
			respondError(w, http.StatusNotFound, "API description not available")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, path)
	}
}
