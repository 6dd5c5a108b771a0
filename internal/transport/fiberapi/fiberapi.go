// ABOUTME: Fiber binding of the admin API for deployments that run on fasthttp
// ABOUTME: Native fiber handlers share cookie, error and body rules with the net/http binding

package fiberapi

import (
	"bufio"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/2389/modeladmin/internal/api"
	"github.com/2389/modeladmin/internal/apierr"
	"github.com/2389/modeladmin/internal/openapi"
	"github.com/2389/modeladmin/internal/transport"
	"github.com/2389/modeladmin/internal/transport/httpapi"
)

// Handler serves the admin API on a fiber app.
type Handler struct {
	svc    *api.Service
	cookie transport.Cookie
	logger *slog.Logger
}

// NewApp creates a fiber app with the admin API mounted under /api.
func NewApp(svc *api.Service, cookie transport.Cookie, logger *slog.Logger) *fiber.App {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:    svc,
		cookie: cookie.WithDefaults(),
		logger: logger.With("component", "fiberapi"),
	}
	app := fiber.New(fiber.Config{
		AppName:               "modeladmin",
		DisableStartupMessage: true,
		BodyLimit:             transport.MaxBodyBytes,
		ErrorHandler:          h.handleError,
	})
	app.Use(recover.New())
	app.Use(h.requestLog)
	h.Mount(app)
	return app
}

// Mount registers the endpoints on router.
func (h *Handler) Mount(router fiber.Router) {
	g := router.Group("/api")
	g.Post("/sign-in", h.SignIn)
	g.Post("/sign-out", h.SignOut)
	g.Get("/me", h.Me)
	g.Get("/configuration", h.Configuration)
	g.Get("/openapi.json", h.OpenAPI)

	g.Get("/list/:model", h.List)
	g.Get("/get/:model/:id", h.Get)
	g.Get("/retrieve/:model/:id", h.Get)
	g.Post("/add/:model", h.Add)
	g.Patch("/change/:model/:id", h.Change)
	g.Delete("/delete/:model/:id", h.Delete)
	g.Post("/action/:model/:action", h.Action)
	g.Post("/export/:model", h.Export)
	g.Patch("/change-password/:id", h.ChangePassword)
}

// handleError renders every returned error as {"detail": ...}. Fiber's own
// errors (unknown route, wrong method) keep their status.
func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		detail := fe.Message
		switch fe.Code {
		case fiber.StatusNotFound:
			detail = "Not found"
		case fiber.StatusMethodNotAllowed:
			detail = "Method not allowed"
		}
		return c.Status(fe.Code).JSON(transport.ErrorBody{Detail: detail})
	}
	status, body := transport.Error(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(body)
}

func (h *Handler) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		// the error handler has not run yet; log the status it will write
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = apierr.Status(err)
		}
	}
	h.logger.Log(c.UserContext(), httpapi.LevelForStatus(status), "http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

func (h *Handler) sessionID(c *fiber.Ctx) string {
	return c.Cookies(h.cookie.Name)
}

func (h *Handler) setCookie(c *fiber.Ctx, hc *http.Cookie) {
	c.Cookie(&fiber.Cookie{
		Name:     hc.Name,
		Value:    hc.Value,
		Path:     hc.Path,
		MaxAge:   hc.MaxAge,
		Expires:  hc.Expires,
		Secure:   hc.Secure,
		HTTPOnly: hc.HttpOnly,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// query copies every query argument, keeping repeated keys.
func query(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		values.Add(string(k), string(v))
	})
	return values
}

// SignIn handles POST /api/sign-in.
func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req api.SignInRequest
	if err := transport.DecodeJSONBytes(c.Body(), &req); err != nil {
		return err
	}
	sid, err := h.svc.SignIn(c.UserContext(), h.sessionID(c), req)
	if err != nil {
		return err
	}
	h.setCookie(c, h.cookie.Session(sid, time.Now()))
	return c.JSON(fiber.Map{})
}

// SignOut handles POST /api/sign-out.
func (h *Handler) SignOut(c *fiber.Ctx) error {
	if err := h.svc.SignOut(c.UserContext(), h.sessionID(c)); err != nil {
		return err
	}
	h.setCookie(c, h.cookie.Cleared())
	return c.JSON(fiber.Map{})
}

// Me handles GET /api/me.
func (h *Handler) Me(c *fiber.Ctx) error {
	me, err := h.svc.Me(c.UserContext(), h.sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(me)
}

// Configuration handles GET /api/configuration.
func (h *Handler) Configuration(c *fiber.Ctx) error {
	cfg, err := h.svc.Configuration(c.UserContext(), h.sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(cfg)
}

// OpenAPI handles GET /api/openapi.json.
func (h *Handler) OpenAPI(c *fiber.Ctx) error {
	return c.JSON(openapi.Build(h.svc.Registry(), openapi.Info{
		Title:      h.svc.Config().SiteName,
		CookieName: h.cookie.Name,
	}))
}

// List handles GET /api/list/:model.
func (h *Handler) List(c *fiber.Ctx) error {
	res, err := h.svc.List(c.UserContext(), h.sessionID(c), c.Params("model"), query(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Get handles GET /api/get/:model/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	obj, err := h.svc.Get(c.UserContext(), h.sessionID(c), c.Params("model"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(obj)
}

// Add handles POST /api/add/:model.
func (h *Handler) Add(c *fiber.Ctx) error {
	payload, err := transport.Payload(c.Body())
	if err != nil {
		return err
	}
	obj, err := h.svc.Add(c.UserContext(), h.sessionID(c), c.Params("model"), payload)
	if err != nil {
		return err
	}
	return c.JSON(obj)
}

// Change handles PATCH /api/change/:model/:id.
func (h *Handler) Change(c *fiber.Ctx) error {
	payload, err := transport.Payload(c.Body())
	if err != nil {
		return err
	}
	obj, err := h.svc.Change(c.UserContext(), h.sessionID(c), c.Params("model"), c.Params("id"), payload)
	if err != nil {
		return err
	}
	return c.JSON(obj)
}

// Delete handles DELETE /api/delete/:model/:id.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := h.svc.Delete(c.UserContext(), h.sessionID(c), c.Params("model"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(id)
}

// Action handles POST /api/action/:model/:action.
func (h *Handler) Action(c *fiber.Ctx) error {
	var req api.ActionRequest
	if err := transport.DecodeJSONBytes(c.Body(), &req); err != nil {
		return err
	}
	if err := h.svc.Action(c.UserContext(), h.sessionID(c), c.Params("model"), c.Params("action"), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{})
}

// Export handles POST /api/export/:model. The file is streamed after the
// handler returns, once fasthttp starts writing the response body.
func (h *Handler) Export(c *fiber.Ctx) error {
	var req api.ExportRequest
	if err := transport.DecodeJSONBytes(c.Body(), &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	res, err := h.svc.Export(ctx, h.sessionID(c), c.Params("model"), query(c), req)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, res.ContentType)
	c.Set(fiber.HeaderContentDisposition, transport.Attachment(res.FileName))
	c.Status(fiber.StatusOK)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := res.Write(ctx, w); err != nil {
			h.logger.Error("export interrupted", "file", res.FileName, "error", err)
		}
		if err := w.Flush(); err != nil {
			h.logger.Debug("export flush failed", "error", err)
		}
	})
	return nil
}

// ChangePassword handles PATCH /api/change-password/:id.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req api.ChangePasswordRequest
	if err := transport.DecodeJSONBytes(c.Body(), &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.UserContext(), h.sessionID(c), c.Params("id"), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{})
}
