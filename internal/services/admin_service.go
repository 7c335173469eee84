package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"financefam/internal/core"
	"financefam/internal/storage"
)

// DefaultAdminID is the id of the admin seeded into an empty store.
const DefaultAdminID = "admin_default"

type UserInput struct {
	Name string `json:"name" validate:"required,max=60"`
	Role string `json:"role" validate:"max=30"`
}

type AdminInput struct {
	Username string `json:"username" validate:"required,max=60"`
	Password string `json:"password" validate:"required,min=4,max=128"`
}

// AdminService manages family members and administrators. Every successful
// mutation is written to the audit log.
type AdminService struct {
	users     storage.UserStore
	admins    storage.AdminStore
	audit     *AuditService
	validator *Validator

	now   func() time.Time
	newID func() string
}

func NewAdminService(users storage.UserStore, admins storage.AdminStore, audit *AuditService, v *Validator) *AdminService {
	return &AdminService{
		users:     users,
		admins:    admins,
		audit:     audit,
		validator: v,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *AdminService) AddUser(ctx context.Context, sess core.Session, in UserInput) (core.User, error) {
	if err := s.validator.Struct(in); err != nil {
		return core.User{}, err
	}
	u := core.User{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Role:      strings.TrimSpace(in.Role),
		CreatedAt: s.now().UTC(),
	}
	if u.Name == "" {
		return core.User{}, core.NewDomainError(core.ErrValidation, "name is a required field")
	}
	if err := s.users.UpsertUser(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	s.record(ctx, sess, ActionCreatedUser, u.Name)
	return u, nil
}

// DeleteUser removes the user. An unknown id is a no-op and is not audited.
// The user's transactions, goals and savings are kept.
func (s *AdminService) DeleteUser(ctx context.Context, sess core.Session, id string) error {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.record(ctx, sess, ActionDeletedUser, u.Name)
	return nil
}

func (s *AdminService) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	admins, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

func (s *AdminService) AddAdmin(ctx context.Context, sess core.Session, in AdminInput) (core.Admin, error) {
	if err := s.validator.Struct(in); err != nil {
		return core.Admin{}, err
	}
	username := strings.TrimSpace(in.Username)
	taken, err := s.usernameTaken(ctx, username)
	if err != nil {
		return core.Admin{}, err
	}
	if taken {
		return core.Admin{}, core.NewDomainError(core.ErrValidation, "Username already in use.")
	}

	a := core.Admin{
		ID:        s.newID(),
		Username:  username,
		Password:  in.Password,
		CreatedAt: s.now().UTC(),
	}
	if err := s.admins.UpsertAdmin(ctx, a); err != nil {
		return core.Admin{}, fmt.Errorf("save admin: %w", err)
	}
	s.record(ctx, sess, ActionCreatedAdmin, a.Username)
	return a, nil
}

// DeleteAdmin removes the admin. The last remaining admin can be deleted.
func (s *AdminService) DeleteAdmin(ctx context.Context, sess core.Session, id string) error {
	a, err := s.admins.GetAdmin(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get admin: %w", err)
	}
	if err := s.admins.DeleteAdmin(ctx, id); err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	s.record(ctx, sess, ActionDeletedAdmin, a.Username)
	return nil
}

// SeedDefaultAdmin creates the default admin when no admin exists. It
// reports whether it created one.
func (s *AdminService) SeedDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	admins, err := s.ListAdmins(ctx)
	if err != nil {
		return false, err
	}
	if len(admins) > 0 {
		return false, nil
	}
	if password == "" {
		slog.WarnContext(ctx, "No admin exists and no default admin password is configured", "component", "auth")
		return false, nil
	}

	a := core.Admin{
		ID:        DefaultAdminID,
		Username:  username,
		Password:  password,
		CreatedAt: s.now().UTC(),
	}
	if err := s.admins.UpsertAdmin(ctx, a); err != nil {
		return false, fmt.Errorf("seed default admin: %w", err)
	}
	slog.InfoContext(ctx, "Default admin seeded", "component", "auth", "username", username)
	return true, nil
}

func (s *AdminService) usernameTaken(ctx context.Context, username string) (bool, error) {
	admins, err := s.ListAdmins(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range admins {
		if strings.EqualFold(a.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

// record writes an audit entry. The mutation already happened, so a
// failure is logged rather than returned.
func (s *AdminService) record(ctx context.Context, sess core.Session, action, target string) {
	if err := s.audit.LogAction(ctx, sess, action, target); err != nil {
		slog.ErrorContext(ctx, "Failed to record audit entry",
			"component", "audit", "action", action, "target", target, "error", err)
	}
}
