// ABOUTME: Single-object operations: get, add, change, delete and change-password
// ABOUTME: Incoming payloads are checked against declared fields and coerced before reaching adapters

package api

import (
	"context"
	"strings"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// Get returns one serialized object.
func (s *Service) Get(ctx context.Context, sessionID, model, rawID string) (map[string]any, error) {
	id, err := admin.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	ctx, _, d, err := s.begin(ctx, sessionID, model, admin.OpView, admin.Target{ID: &id})
	if err != nil {
		return nil, err
	}
	row, err := d.Adapter.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get", err)
	}
	if row == nil {
		return nil, apierr.NotFoundf("%s %s not found", d.Name, id)
	}
	return d.Serialize(row), nil
}

// Add creates an object from payload and returns it as stored.
func (s *Service) Add(ctx context.Context, sessionID, model string, payload map[string]any) (map[string]any, error) {
	ctx, _, d, err := s.begin(ctx, sessionID, model, admin.OpAdd, admin.Target{})
	if err != nil {
		return nil, err
	}
	values, err := s.cleanPayload(d, payload, true)
	if err != nil {
		return nil, err
	}
	row, err := d.Adapter.Add(ctx, values)
	if err != nil {
		return nil, s.fail(ctx, "add", err)
	}
	s.logger.Info("object added", "model", d.Name, "id", row[d.PK()])
	return d.Serialize(row), nil
}

// Change applies a partial update and returns the updated object.
func (s *Service) Change(ctx context.Context, sessionID, model, rawID string, payload map[string]any) (map[string]any, error) {
	id, err := admin.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	ctx, _, d, err := s.begin(ctx, sessionID, model, admin.OpChange, admin.Target{ID: &id})
	if err != nil {
		return nil, err
	}
	values, err := s.cleanPayload(d, payload, false)
	if err != nil {
		return nil, err
	}
	row, err := d.Adapter.Change(ctx, id, values)
	if err != nil {
		return nil, s.fail(ctx, "change", err)
	}
	if row == nil {
		return nil, apierr.NotFoundf("%s %s not found", d.Name, id)
	}
	s.logger.Info("object changed", "model", d.Name, "id", id.String())
	return d.Serialize(row), nil
}

// Delete removes an object and returns its id. Users cannot delete themselves.
func (s *Service) Delete(ctx context.Context, sessionID, model, rawID string) (admin.ID, error) {
	id, err := admin.ParseID(rawID)
	if err != nil {
		return admin.ID{}, err
	}
	ctx, user, d, err := s.begin(ctx, sessionID, model, admin.OpDelete, admin.Target{ID: &id})
	if err != nil {
		return admin.ID{}, err
	}
	if d.Name == s.auth.UserModelName() && user.ID == id {
		return admin.ID{}, apierr.Forbidden("You cannot delete yourself")
	}
	deleted, err := d.Adapter.Delete(ctx, id)
	if err != nil {
		return admin.ID{}, s.fail(ctx, "delete", err)
	}
	if !deleted {
		return admin.ID{}, apierr.NotFoundf("%s %s not found", d.Name, id)
	}
	s.logger.Info("object deleted", "model", d.Name, "id", id.String())
	return id, nil
}

// ChangePassword sets a new password on a user-model row.
func (s *Service) ChangePassword(ctx context.Context, sessionID, rawID string, req ChangePasswordRequest) error {
	id, err := admin.ParseID(rawID)
	if err != nil {
		return err
	}
	ctx, _, _, err = s.begin(ctx, sessionID, s.auth.UserModelName(), admin.OpChange, admin.Target{ID: &id})
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Password) == "" {
		return apierr.Validation("password is required")
	}
	return s.fail(ctx, "change-password", s.auth.ChangePassword(ctx, id, req.Password))
}

// isPassword reports whether values of f are hashed before storage.
func isPassword(d *admin.Descriptor, f admin.Field) bool {
	if d.WidgetFor(f) == admin.WidgetPassword {
		return true
	}
	return d.User != nil && f.Name == d.User.WithDefaults().PasswordField
}

// cleanPayload validates payload against d. Unknown fields are rejected;
// read-only fields are dropped, and so is the primary key on change. Keys
// naming an inline model are ignored: inline rows are saved through their
// own model endpoints.
func (s *Service) cleanPayload(d *admin.Descriptor, payload map[string]any, adding bool) (admin.Row, error) {
	inlines := make(map[string]bool, len(d.Inlines))
	for _, in := range d.Inlines {
		inlines[in.Descriptor.Name] = true
	}

	values := make(admin.Row, len(payload))
	for name, raw := range payload {
		f, ok := d.Field(name)
		if !ok {
			if inlines[name] {
				continue
			}
			return nil, apierr.Validationf("unknown field %q", name)
		}
		if d.IsReadOnly(f) || (!adding && name == d.PK()) {
			continue
		}

		if isPassword(d, f) {
			pw, isString := raw.(string)
			if raw != nil && !isString {
				return nil, apierr.Validationf("%s: expected a string", name)
			}
			if pw == "" {
				continue
			}
			hash, err := s.hashPassword(d, pw)
			if err != nil {
				return nil, err
			}
			values[name] = hash
			continue
		}

		v, err := admin.Coerce(f, raw)
		if err != nil {
			return nil, err
		}
		if str, ok := v.(string); ok && d.WidgetFor(f) == admin.WidgetRichText {
			v = s.sanitizer.Sanitize(str)
		}
		values[name] = v
	}

	if adding {
		for _, f := range d.Fields {
			if !f.Required || d.IsReadOnly(f) {
				continue
			}
			v, ok := values[f.Name]
			if !ok || v == nil || v == "" {
				return nil, apierr.Validationf("%s is required", f.Name)
			}
		}
	}
	return values, nil
}

func (s *Service) hashPassword(d *admin.Descriptor, password string) (string, error) {
	um := admin.UserModel{}
	if d.User != nil {
		um = *d.User
	}
	hash, err := s.auth.Hasher(um).Hash(password)
	if err != nil {
		return "", s.fail(context.Background(), "hash-password", err)
	}
	return hash, nil
}
