package auth

import (
	"context"
	"strings"

	"github.com/baechuer/contacts-api/internal/domain"
)

const actionSetRole = "admin.set_user_role"

type roleChange struct {
	actorID   string
	actorRole string
	targetID  string
	newRole   string
}

// check validates the request and the actor without touching the store.
func (c roleChange) check() error {
	switch {
	case c.targetID == "":
		return domain.ErrMissingField("user_id")
	case c.newRole == "":
		return domain.ErrMissingField("role")
	case !domain.IsValidRole(c.newRole):
		return domain.ErrInvalidRole(c.newRole)
	case !domain.AtLeast(c.actorRole, domain.RoleAdmin):
		return domain.ErrInsufficientRole(string(domain.RoleAdmin))
	case c.actorID != "" && c.actorID == c.targetID:
		return domain.ErrCannotAffectSelf()
	}
	return nil
}

// SetUserRole changes a user's role. Only admins may do it, never on
// themselves, and never by demoting the last admin. Every outcome is
// audited.
func (s *Service) SetUserRole(ctx context.Context, actorID, actorRole, targetUserID, newRole string) error {
	c := roleChange{
		actorID:   strings.TrimSpace(actorID),
		actorRole: strings.TrimSpace(actorRole),
		targetID:  strings.TrimSpace(targetUserID),
		newRole:   strings.TrimSpace(newRole),
	}

	oldRole, err := s.applyRoleChange(ctx, c)

	fields := map[string]string{
		"actor_id":   c.actorID,
		"actor_role": c.actorRole,
		"target_id":  c.targetID,
		"new_role":   c.newRole,
	}
	switch {
	case err != nil:
		fields["result"] = "error"
		fields["error_code"] = domainCode(err)
	case oldRole == c.newRole:
		fields["result"] = "noop"
	default:
		fields["result"] = "success"
		fields["old_role"] = oldRole
	}
	s.audit(actionSetRole, fields)
	return err
}

// applyRoleChange returns the role held before the change.
func (s *Service) applyRoleChange(ctx context.Context, c roleChange) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}

	target, err := s.store.FindByID(ctx, c.targetID)
	if err != nil {
		return "", err
	}
	if target.Role == c.newRole {
		return target.Role, nil
	}

	if target.Role == string(domain.RoleAdmin) {
		admins, err := s.store.CountByRole(ctx, string(domain.RoleAdmin))
		if err != nil {
			return "", err
		}
		if admins <= 1 {
			return "", domain.ErrLastAdminProtected()
		}
	}

	err = s.updateIdentity(ctx, c.targetID, "set_role", func(ctx context.Context) error {
		return s.store.SetRole(ctx, c.targetID, c.newRole)
	})
	if err != nil {
		return "", err
	}
	return target.Role, nil
}
