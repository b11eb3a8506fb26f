package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/consignments/3", "/consignments/{n}"},
		{"/consignments/12/rows", "/consignments/{n}/rows"},
		{"/consignments/1/rows/6f1c2d3e-1a2b-4c5d-8e9f-0a1b2c3d4e5f", "/consignments/{n}/rows/{id}"},
		{"/attachments/lab report.pdf", "/attachments/{name}"},
		{"/files/plans/6f1c2d3e-1a2b-4c5d-8e9f-0a1b2c3d4e5f.png", "/files/{key}"},
		{"/api/upload-plan", "/api/upload-plan"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestMiddleware_CapturesStatus(t *testing.T) {
	var seen int
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		seen = w.(*responseWriter).statusCode
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, seen)
}
