package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		cookie  string
		header  string
		want    string
		wantErr bool
	}{
		{name: "cookie only", cookie: "from-cookie", want: "from-cookie"},
		{name: "bearer only", header: "Bearer from-header", want: "from-header"},
		{name: "cookie wins over header", cookie: "from-cookie", header: "Bearer from-header", want: "from-cookie"},
		{name: "nothing sent", want: ""},
		{name: "malformed header", header: "Token abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: AccessCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			got, err := ExtractToken(r, AccessCookie)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionCookies(t *testing.T) {
	opts := CookieOptions{Domain: "example.com", Secure: true, MaxAge: 14 * 24 * time.Hour}

	w := httptest.NewRecorder()
	opts.SetSessionCookies(w, "access", "refresh")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := byName[name]
		require.NotNil(t, c, name)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
		assert.Equal(t, 14*24*60*60, c.MaxAge)
	}
	assert.Equal(t, "access", byName[AccessCookie].Value)
	assert.Equal(t, "refresh", byName[RefreshCookie].Value)
}

func TestClearSessionCookies(t *testing.T) {
	w := httptest.NewRecorder()
	CookieOptions{MaxAge: time.Hour}.ClearSessionCookies(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	}
}
