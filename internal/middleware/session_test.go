package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/soilsheet/internal/session"
)

func newSessionMiddleware() (*FormSessionMiddleware, *session.Manager) {
	manager := session.NewManager(session.Config{}, discardLogger())
	return NewFormSessionMiddleware(manager, discardLogger()), manager
}

func TestWithSession_PageCreatesSession(t *testing.T) {
	mw, manager := newSessionMiddleware()

	var got *session.Session
	h := mw.WithSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.Equal(t, 1, manager.Len())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, got.ID, cookies[0].Value)

	// The cookie finds the same session again.
	req := httptest.NewRequest(http.MethodPost, "/site", nil)
	req.AddCookie(cookies[0])
	var again *session.Session
	mw.WithSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		again = GetSession(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)
	assert.Same(t, got, again)
}

func TestWithSession_ExpiredFragmentRequest(t *testing.T) {
	mw, manager := newSessionMiddleware()

	called := false
	h := mw.WithSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"htmx edit", http.MethodPost, "/site", map[string]string{"HX-Request": "true"}, http.StatusNoContent},
		{"htmx get", http.MethodGet, "/consignments/1", map[string]string{"HX-Request": "true"}, http.StatusNoContent},
		{"api upload", http.MethodPost, "/api/upload-plan", nil, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "gone"})
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "true", rec.Header().Get("HX-Refresh"))
			}
		})
	}

	assert.False(t, called)
	assert.Equal(t, 0, manager.Len(), "only the page starts a session")
}

func TestGetSession_Missing(t *testing.T) {
	assert.Nil(t, GetSession(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
