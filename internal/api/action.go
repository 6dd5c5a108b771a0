// ABOUTME: Bulk action operation: validates ids and runs the descriptor's named handler
// ABOUTME: Untyped handler failures surface as validation errors carrying the handler's message

package api

import (
	"context"
	"errors"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// Action runs the named action over the selected ids.
func (s *Service) Action(ctx context.Context, sessionID, model, action string, req ActionRequest) error {
	ctx, user, d, err := s.begin(ctx, sessionID, model, admin.OpAction, admin.Target{Action: action})
	if err != nil {
		return err
	}
	a, ok := d.Action(action)
	if !ok {
		return apierr.Validationf("%s action is not found", action)
	}

	ids := make([]admin.ID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		var id admin.ID
		if err := id.UnmarshalJSON(raw); err != nil {
			return apierr.Validation(admin.InvalidIDDetail)
		}
		if a.Destructive && d.Name == s.auth.UserModelName() && id == user.ID {
			return apierr.Forbidden("You cannot apply this action to yourself")
		}
		ids = append(ids, id)
	}

	if err := a.Handler(ctx, d, ids); err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return err
		}
		s.logger.Warn("action failed", "model", d.Name, "action", action, "error", err)
		return apierr.Wrap(apierr.KindValidation, err, err.Error())
	}
	s.logger.Info("action executed", "model", d.Name, "action", action, "count", len(ids))
	return nil
}
