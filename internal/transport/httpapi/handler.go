// ABOUTME: net/http binding of the admin API: session cookie in, JSON or file download out
// ABOUTME: Every handler delegates to api.Service and maps typed errors to {"detail": ...} responses

package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/modeladmin/internal/api"
	"github.com/2389/modeladmin/internal/apierr"
	"github.com/2389/modeladmin/internal/openapi"
	"github.com/2389/modeladmin/internal/transport"
)

// ParamFunc reads a named path parameter from a request.
type ParamFunc func(r *http.Request, name string) string

// Options configures a Handler.
type Options struct {
	Cookie transport.Cookie
	Logger *slog.Logger
	// Param reads path parameters. Defaults to (*http.Request).PathValue,
	// which works for ServeMux patterns.
	Param ParamFunc
}

// Handler serves the admin API over net/http.
type Handler struct {
	svc    *api.Service
	cookie transport.Cookie
	logger *slog.Logger
	param  ParamFunc
	now    func() time.Time
}

// New creates a Handler for svc.
func New(svc *api.Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	param := opts.Param
	if param == nil {
		param = func(r *http.Request, name string) string { return r.PathValue(name) }
	}
	return &Handler{
		svc:    svc,
		cookie: opts.Cookie.WithDefaults(),
		logger: logger.With("component", "httpapi"),
		param:  param,
		now:    time.Now,
	}
}

// Routes returns a ServeMux with every endpoint mounted under /api,
// wrapped in panic recovery and request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Mount(mux)
	return Recover(h.logger, RequestLog(h.logger, mux))
}

// Mount registers the endpoints on mux using method patterns.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sign-in", h.SignIn)
	mux.HandleFunc("POST /api/sign-out", h.SignOut)
	mux.HandleFunc("GET /api/me", h.Me)
	mux.HandleFunc("GET /api/configuration", h.Configuration)
	mux.HandleFunc("GET /api/openapi.json", h.OpenAPI)
	mux.HandleFunc("GET /api/list/{model}", h.List)
	mux.HandleFunc("GET /api/get/{model}/{id}", h.Get)
	mux.HandleFunc("GET /api/retrieve/{model}/{id}", h.Get)
	mux.HandleFunc("POST /api/add/{model}", h.Add)
	mux.HandleFunc("PATCH /api/change/{model}/{id}", h.Change)
	mux.HandleFunc("DELETE /api/delete/{model}/{id}", h.Delete)
	mux.HandleFunc("POST /api/action/{model}/{action}", h.Action)
	mux.HandleFunc("POST /api/export/{model}", h.Export)
	mux.HandleFunc("PATCH /api/change-password/{id}", h.ChangePassword)
	mux.HandleFunc("/api/", h.NotFound)
}

func (h *Handler) sessionID(r *http.Request) string {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := transport.Error(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, body)
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, transport.MaxBodyBytes+1))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindValidation, err, "could not read request body")
	}
	return data, nil
}

// SignIn handles POST /api/sign-in.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req api.SignInRequest
	if err := transport.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, err)
		return
	}
	sid, err := h.svc.SignIn(r.Context(), h.sessionID(r), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.SetCookie(w, h.cookie.Session(sid, h.now()))
	h.writeJSON(w, http.StatusOK, struct{}{})
}

// SignOut handles POST /api/sign-out.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), h.sessionID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	http.SetCookie(w, h.cookie.Cleared())
	h.writeJSON(w, http.StatusOK, struct{}{})
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.svc.Me(r.Context(), h.sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, me)
}

// Configuration handles GET /api/configuration.
func (h *Handler) Configuration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Configuration(r.Context(), h.sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// OpenAPI handles GET /api/openapi.json. The document is public.
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	doc := openapi.Build(h.svc.Registry(), openapi.Info{
		Title:      h.svc.Config().SiteName,
		CookieName: h.cookie.Name,
	})
	h.writeJSON(w, http.StatusOK, doc)
}

// List handles GET /api/list/{model}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.List(r.Context(), h.sessionID(r), h.param(r, "model"), r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Get handles GET /api/get/{model}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.Get(r.Context(), h.sessionID(r), h.param(r, "model"), h.param(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, obj)
}

// Add handles POST /api/add/{model}.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	payload, err := h.payload(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	obj, err := h.svc.Add(r.Context(), h.sessionID(r), h.param(r, "model"), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, obj)
}

// Change handles PATCH /api/change/{model}/{id}.
func (h *Handler) Change(w http.ResponseWriter, r *http.Request) {
	payload, err := h.payload(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	obj, err := h.svc.Change(r.Context(), h.sessionID(r), h.param(r, "model"), h.param(r, "id"), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, obj)
}

func (h *Handler) payload(r *http.Request) (map[string]any, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	return transport.Payload(data)
}

// Delete handles DELETE /api/delete/{model}/{id} and responds with the deleted id.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Delete(r.Context(), h.sessionID(r), h.param(r, "model"), h.param(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, id)
}

// Action handles POST /api/action/{model}/{action}.
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	var req api.ActionRequest
	if err := transport.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.Action(r.Context(), h.sessionID(r), h.param(r, "model"), h.param(r, "action"), req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

// Export handles POST /api/export/{model}. Query parameters narrow the rows
// like List does; the body picks fields and format.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req api.ExportRequest
	if err := transport.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Export(r.Context(), h.sessionID(r), h.param(r, "model"), r.URL.Query(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", transport.Attachment(res.FileName))
	w.WriteHeader(http.StatusOK)
	if err := res.Write(r.Context(), w); err != nil {
		// Headers are already sent; the client sees a truncated file.
		h.logger.Error("export interrupted", "file", res.FileName, "error", err)
	}
}

// ChangePassword handles PATCH /api/change-password/{id}.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req api.ChangePasswordRequest
	if err := transport.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), h.sessionID(r), h.param(r, "id"), req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

// NotFound answers unknown /api paths in the API's error shape.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, transport.ErrorBody{Detail: "Not found"})
}
