// ABOUTME: Framework-neutral pieces shared by every HTTP transport
// ABOUTME: Session cookie settings, error bodies, JSON body decoding and download headers

package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/2389/modeladmin/internal/apierr"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "admin_session_id"

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// Cookie describes the session cookie.
type Cookie struct {
	Name   string
	Path   string
	Secure bool
	// TTL sets Expires on the cookie. Zero makes it a browser-session cookie.
	TTL time.Duration
}

// WithDefaults fills the cookie name and path.
func (c Cookie) WithDefaults() Cookie {
	if c.Name == "" {
		c.Name = DefaultCookieName
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}

// Session builds the cookie carrying a new session id.
func (c Cookie) Session(sessionID string, now time.Time) *http.Cookie {
	c = c.WithDefaults()
	cookie := &http.Cookie{
		Name:     c.Name,
		Value:    sessionID,
		Path:     c.Path,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if c.TTL > 0 {
		cookie.Expires = now.Add(c.TTL)
	}
	return cookie
}

// Cleared builds the cookie that removes the session cookie.
func (c Cookie) Cleared() *http.Cookie {
	c = c.WithDefaults()
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Error maps err to its status code and response body.
func Error(err error) (int, ErrorBody) {
	return apierr.Status(err), ErrorBody{Detail: apierr.Detail(err)}
}

// DecodeJSON reads one JSON value from body into v. An empty body leaves v
// untouched. Malformed JSON is a validation error.
func DecodeJSON(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxBodyBytes+1))
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, err, "could not read request body")
	}
	return DecodeJSONBytes(data, v)
}

// DecodeJSONBytes is DecodeJSON for an already buffered body.
func DecodeJSONBytes(data []byte, v any) error {
	if len(data) > MaxBodyBytes {
		return apierr.Validation("request body too large")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apierr.Wrap(apierr.KindValidation, err, fmt.Sprintf("%s: unexpected %s", typeErr.Field, typeErr.Value))
		}
		return apierr.Wrap(apierr.KindValidation, err, "request body must be valid JSON")
	}
	if dec.More() {
		return apierr.Validation("request body must contain a single JSON value")
	}
	return nil
}

// Payload decodes an object body into a field map. Numbers stay exact as
// json.Number until the API coerces them per field.
func Payload(data []byte) (map[string]any, error) {
	var payload map[string]any
	if err := DecodeJSONBytes(data, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

// Attachment returns a Content-Disposition value for a download named filename.
func Attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
