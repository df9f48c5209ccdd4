package handlers

import (
	"net/http"

	"github.com/hirewire/interview-gateway/pkg/interview"
)

// NotFoundHandler answers unrouted paths with a JSON error envelope instead
// of the default plain-text 404.
type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeError(w, interview.NewNotFoundError("not found"))
}
