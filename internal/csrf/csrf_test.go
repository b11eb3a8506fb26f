package csrf

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Protect(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}

func TestValidateToken(t *testing.T) {
	assert.True(t, ValidateToken("abc", "abc"))
	assert.False(t, ValidateToken("abc", "abd"))
	assert.False(t, ValidateToken("", ""))
	assert.False(t, ValidateToken("abc", ""))
}

func TestProtect(t *testing.T) {
	const token = "token-value"

	tests := []struct {
		name   string
		method string
		cookie string
		header string
		form   string
		want   int
	}{
		{name: "get passes", method: http.MethodGet, want: http.StatusNoContent},
		{name: "header token", method: http.MethodPost, cookie: token, header: token, want: http.StatusNoContent},
		{name: "form token", method: http.MethodPost, cookie: token, form: token, want: http.StatusNoContent},
		{name: "delete with header", method: http.MethodDelete, cookie: token, header: token, want: http.StatusNoContent},
		{name: "missing cookie", method: http.MethodPost, header: token, want: http.StatusForbidden},
		{name: "missing token", method: http.MethodPost, cookie: token, want: http.StatusForbidden},
		{name: "mismatch", method: http.MethodPost, cookie: token, header: "other", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.form != "" {
				body = strings.NewReader(url.Values{FormFieldName: {tt.form}}.Encode())
			}
			req := httptest.NewRequest(tt.method, "/submit", body)
			if tt.form != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(HeaderName, tt.header)
			}

			rec := httptest.NewRecorder()
			protected().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestEnsureToken(t *testing.T) {
	rec := httptest.NewRecorder()
	token, err := EnsureToken(rec, httptest.NewRequest(http.MethodGet, "/", nil), true)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.False(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "existing"})
	rec = httptest.NewRecorder()
	token, err = EnsureToken(rec, req, true)
	require.NoError(t, err)
	assert.Equal(t, "existing", token)
	assert.Empty(t, rec.Result().Cookies())
}
