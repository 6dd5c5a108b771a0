// ABOUTME: Tests for the fiber binding using fiber's in-process app.Test
// ABOUTME: Covers sign-in cookies, CRUD routing, streamed export and error mapping

package fiberapi

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

	"github.com/gofiber/fiber/v2"
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

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	users := memadapter.New("id")
	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	_, err = users.Add(ctx, admin.Row{"username": "root", "password": hash})
	require.NoError(t, err)

	cities := memadapter.New("id")
	for _, name := range []string{"Oslo", "Lima", "Kyiv"} {
		_, err := cities.Add(ctx, admin.Row{"name": name})
		require.NoError(t, err)
	}

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
		Name:    "city",
		Fields:  []admin.Field{{Name: "id", Type: admin.TypeInt}, {Name: "name", Type: admin.TypeString, Required: true}},
		Adapter: cities,
	}))

	sessions := store.NewMemoryStore(0, time.Minute)
	t.Cleanup(func() { sessions.Close() })
	authSvc := auth.NewService(reg, sessions, auth.Config{UserModel: "user"}, logger)
	return NewApp(api.New(reg, authSvc, api.Config{}, logger), transport.Cookie{}, logger)
}

func request(t *testing.T, app *fiber.App, cookie *http.Cookie, method, path, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func signIn(t *testing.T, app *fiber.App) *http.Cookie {
	t.Helper()
	resp, body := request(t, app, nil, http.MethodPost, "/api/sign-in", `{"username":"root","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, transport.DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	return cookies[0]
}

func TestSignInAndOut(t *testing.T) {
	app := newApp(t)

	resp, body := request(t, app, nil, http.MethodPost, "/api/sign-in", `{"username":"root","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"`+auth.DetailInvalidCredentials+`"}`, body)
	assert.Empty(t, resp.Cookies())

	cookie := signIn(t, app)
	resp, body = request(t, app, cookie, http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":1,"username":"root"}`, body)

	resp, _ = request(t, app, cookie, http.MethodPost, "/api/sign-out", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = request(t, app, cookie, http.MethodPost, "/api/sign-out", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCRUD(t *testing.T) {
	app := newApp(t)
	cookie := signIn(t, app)

	resp, body := request(t, app, cookie, http.MethodPost, "/api/add/city", `{"name":"Quito"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"id":4,"name":"Quito"}`, body)

	resp, body = request(t, app, cookie, http.MethodPatch, "/api/change/city/4", `{"name":"Cusco"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"id":4,"name":"Cusco"}`, body)

	resp, body = request(t, app, cookie, http.MethodGet, "/api/list/city?sort_by=-name&limit=2&id__in=1,2,4", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var page api.ListResult
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "Oslo", page.Results[0]["name"])
	assert.Equal(t, "Lima", page.Results[1]["name"])

	resp, body = request(t, app, cookie, http.MethodDelete, "/api/delete/city/4", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4", body)

	resp, _ = request(t, app, cookie, http.MethodGet, "/api/retrieve/city/4", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportStreams(t *testing.T) {
	app := newApp(t)
	cookie := signIn(t, app)

	resp, body := request(t, app, cookie, http.MethodPost, "/api/export/city?sort_by=name", `{"format":"json","fields":["name"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=city.json", resp.Header.Get("Content-Disposition"))
	assert.JSONEq(t, `[{"name":"Kyiv"},{"name":"Lima"},{"name":"Oslo"}]`, body)
}

func TestErrorMapping(t *testing.T) {
	app := newApp(t)
	cookie := signIn(t, app)

	for _, tc := range []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/api/get/city/nope", "", http.StatusUnprocessableEntity},
		{http.MethodPost, "/api/add/city", `{"name":`, http.StatusUnprocessableEntity},
		{http.MethodPost, "/api/add/city", `{}`, http.StatusUnprocessableEntity},
		{http.MethodGet, "/api/list/planet", "", http.StatusNotFound},
		{http.MethodGet, "/api/elsewhere", "", http.StatusNotFound},
		{http.MethodPost, "/api/action/city/purge", `{"ids":[1]}`, http.StatusUnprocessableEntity},
	} {
		resp, body := request(t, app, cookie, tc.method, tc.path, tc.body)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)
		var eb transport.ErrorBody
		require.NoError(t, json.Unmarshal([]byte(body), &eb), body)
		assert.NotEmpty(t, eb.Detail)
	}

	resp, _ := request(t, app, nil, http.MethodGet, "/api/configuration", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
