package http

import (
	"net/http"
	"strings"

	"github.com/AlejandroAndrade98/embipos/internal/service"
	"github.com/AlejandroAndrade98/embipos/pkg/httputil"
	"github.com/AlejandroAndrade98/embipos/pkg/middleware"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// operator returns the signed-in operator of r. Routes behind Auth always
// have one; the error branch covers handlers mounted without it.
func operator(w http.ResponseWriter, r *http.Request) (service.Operator, bool) {
	op, err := service.OperatorFromClaims(middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, nil)
		return service.Operator{}, false
	}
	return op, true
}
