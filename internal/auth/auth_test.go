package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/pixelctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	for header, want := range map[string]string{
		"Bearer s3cret":  "s3cret",
		"bearer  s3cret": "s3cret",
		"Basic s3cret":   "",
		"s3cret":         "",
		"":               "",
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", header)
		require.Equal(t, want, BearerToken(r), header)
	}
}

func TestRequireGuardsListedMethods(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Require(FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	}), http.MethodPost))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve := func(method, token string) int {
		req := httptest.NewRequest(method, "/x", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusOK, serve(http.MethodGet, ""))
	require.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, ""))
	require.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, "nope"))
	require.Equal(t, http.StatusOK, serve(http.MethodPost, "ok"))
}
