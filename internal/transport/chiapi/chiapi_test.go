// ABOUTME: Tests for the chi binding over an in-memory model
// ABOUTME: Verifies chi path parameters reach the shared handlers and errors keep the JSON shape

package chiapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/modeladmin/internal/adapter/memadapter"
	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/api"
	"github.com/2389/modeladmin/internal/auth"
	"github.com/2389/modeladmin/internal/registry"
	"github.com/2389/modeladmin/internal/store"
	"github.com/2389/modeladmin/internal/transport"
)

func newRouter(t *testing.T) (http.Handler, *http.Cookie) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	users := memadapter.New("id")
	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	_, err = users.Add(ctx, admin.Row{"username": "root", "password": hash})
	require.NoError(t, err)

	notes := memadapter.New("id")
	_, err = notes.Add(ctx, admin.Row{"text": "hello"})
	require.NoError(t, err)

	reg := registry.New(logger)
	require.NoError(t, reg.Register(&admin.Descriptor{
		Name: "user",
		Fields: []admin.Field{
			{Name: "id", Type: admin.TypeInt},
			{Name: "username", Type: admin.TypeString},
			{Name: "password", Type: admin.TypeString},
		},
		Adapter: users,
		User:    &admin.UserModel{Hasher: hasher},
	}))
	require.NoError(t, reg.Register(&admin.Descriptor{
		Name:    "note",
		Fields:  []admin.Field{{Name: "id", Type: admin.TypeInt}, {Name: "text", Type: admin.TypeText}},
		Adapter: notes,
	}))

	sessions := store.NewMemoryStore(0, time.Minute)
	t.Cleanup(func() { sessions.Close() })
	authSvc := auth.NewService(reg, sessions, auth.Config{UserModel: "user"}, logger)
	router := NewRouter(api.New(reg, authSvc, api.Config{}, logger), transport.Cookie{Name: "sid"}, logger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sign-in", strings.NewReader(`{"username":"root","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	return router, cookies[0]
}

func serve(router http.Handler, cookie *http.Cookie, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoutesUseChiParams(t *testing.T) {
	router, cookie := newRouter(t)

	rec := serve(router, cookie, http.MethodGet, "/api/get/note/1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"text":"hello"}`, rec.Body.String())

	rec = serve(router, cookie, http.MethodPatch, "/api/change/note/1", `{"text":"bye"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"text":"bye"}`, rec.Body.String())

	rec = serve(router, cookie, http.MethodGet, "/api/list/note?text__icontains=BY", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page api.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = serve(router, cookie, http.MethodDelete, "/api/delete/note/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1\n", rec.Body.String())
}

func TestErrorsKeepDetailShape(t *testing.T) {
	router, cookie := newRouter(t)

	for _, tc := range []struct {
		method, path string
		cookie       *http.Cookie
		status       int
	}{
		{http.MethodGet, "/api/list/note", nil, http.StatusUnauthorized},
		{http.MethodGet, "/api/get/note/xyz", cookie, http.StatusUnprocessableEntity},
		{http.MethodGet, "/api/get/note/99", cookie, http.StatusNotFound},
		{http.MethodGet, "/api/list/missing", cookie, http.StatusNotFound},
		{http.MethodGet, "/api/unknown", cookie, http.StatusNotFound},
		{http.MethodGet, "/api/sign-in", cookie, http.StatusMethodNotAllowed},
	} {
		rec := serve(router, tc.cookie, tc.method, tc.path, "")
		assert.Equal(t, tc.status, rec.Code, tc.path)
		var body transport.ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), tc.path)
		assert.NotEmpty(t, body.Detail, tc.path)
	}
}
