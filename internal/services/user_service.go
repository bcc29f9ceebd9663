package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errUserRepositoryRequired = errors.New("user service: repository is required")
	errUserClockRequired      = errors.New("user service: clock is required")
)

// ErrUserInvalidInput indicates the caller supplied invalid input.
var ErrUserInvalidInput = errors.New("user service: invalid input")

// ErrUserNotFound indicates the requested profile does not exist.
var ErrUserNotFound = errors.New("user service: not found")

// ErrUserSelfDelete indicates an admin attempted to delete their own account.
var ErrUserSelfDelete = errors.New("user service: cannot delete own account")

// ErrUserUnavailable indicates the user backend cannot fulfil the request.
var ErrUserUnavailable = errors.New("user service: unavailable")

const (
	maxDisplayNameLength = 120
	defaultUserPageSize  = 50
	maxUserPageSize      = 200
)

// UserServiceDeps wires persistence and ambient dependencies for user administration.
type UserServiceDeps struct {
	Repository repositories.UserRepository
	Activity   ActivityService
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type userService struct {
	repo     repositories.UserRepository
	activity ActivityService
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewUserService constructs a UserService enforcing dependency validation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Repository == nil {
		return nil, errUserRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errUserClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		repo:     deps.Repository,
		activity: deps.Activity,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
	}, nil
}

func (s *userService) GetProfile(ctx context.Context, uid string) (UserProfile, error) {
	if s == nil || s.repo == nil {
		return UserProfile{}, ErrUserUnavailable
	}

	trimmed := strings.TrimSpace(uid)
	if trimmed == "" {
		return UserProfile{}, ErrUserInvalidInput
	}

	profile, err := s.repo.FindByUID(ctx, trimmed)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}
	return normaliseProfile(profile), nil
}

// EnsureProfile mirrors the verified token identity into the profile store on
// login, creating customers on first sight and refreshing mutable fields.
func (s *userService) EnsureProfile(ctx context.Context, cmd EnsureProfileCommand) (UserProfile, error) {
	if s == nil || s.repo == nil {
		return UserProfile{}, ErrUserUnavailable
	}

	uid := strings.TrimSpace(cmd.UID)
	if uid == "" {
		return UserProfile{}, ErrUserInvalidInput
	}

	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	displayName := strings.TrimSpace(cmd.DisplayName)
	now := s.now()

	profile, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		if !isRepoNotFound(err) {
			return UserProfile{}, s.translateRepoError(err)
		}
		profile = domain.UserProfile{
			UID:       uid,
			Role:      domain.RoleCustomer,
			CreatedAt: now,
		}
	}

	changed := profile.CreatedAt.Equal(now)
	if email != "" && profile.Email != email {
		profile.Email = email
		changed = true
	}
	if displayName != "" && profile.DisplayName != displayName {
		profile.DisplayName = displayName
		changed = true
	}
	if cmd.Verified && !profile.Verified {
		profile.Verified = true
		changed = true
	}
	if !profile.Role.Valid() {
		profile.Role = domain.RoleCustomer
		changed = true
	}

	if !changed {
		return normaliseProfile(profile), nil
	}

	profile.UpdatedAt = now
	saved, err := s.repo.Upsert(ctx, profile)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}
	return normaliseProfile(saved), nil
}

func (s *userService) ListUsers(ctx context.Context, filter UserFilter) (domain.CursorPage[UserProfile], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[UserProfile]{}, ErrUserUnavailable
	}

	role := strings.ToLower(strings.TrimSpace(filter.Role))
	if role != "" && !domain.UserRole(role).Valid() {
		return domain.CursorPage[UserProfile]{}, fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, role)
	}

	page, err := s.repo.List(ctx, repositories.UserListFilter{
		Role:       role,
		Query:      strings.TrimSpace(filter.Query),
		Pagination: clampPagination(filter.Pagination, defaultUserPageSize, maxUserPageSize),
	})
	if err != nil {
		return domain.CursorPage[UserProfile]{}, s.translateRepoError(err)
	}

	for i := range page.Items {
		page.Items[i] = normaliseProfile(page.Items[i])
	}
	return page, nil
}

func (s *userService) UpdateUser(ctx context.Context, cmd UpdateUserCommand) (UserProfile, error) {
	if s == nil || s.repo == nil {
		return UserProfile{}, ErrUserUnavailable
	}

	uid := strings.TrimSpace(cmd.UID)
	if uid == "" {
		return UserProfile{}, ErrUserInvalidInput
	}
	if cmd.Role == nil && cmd.DisplayName == nil && cmd.Verified == nil && cmd.Disabled == nil {
		return UserProfile{}, ErrUserInvalidInput
	}

	profile, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}

	if cmd.Role != nil {
		role := domain.UserRole(strings.ToLower(strings.TrimSpace(string(*cmd.Role))))
		if !role.Valid() {
			return UserProfile{}, fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, *cmd.Role)
		}
		profile.Role = role
	}
	if cmd.DisplayName != nil {
		name := strings.TrimSpace(*cmd.DisplayName)
		if len(name) > maxDisplayNameLength {
			return UserProfile{}, fmt.Errorf("%w: display name must be %d characters or fewer", ErrUserInvalidInput, maxDisplayNameLength)
		}
		profile.DisplayName = name
	}
	if cmd.Verified != nil {
		profile.Verified = *cmd.Verified
	}
	if cmd.Disabled != nil {
		profile.Disabled = *cmd.Disabled
	}
	profile.UpdatedAt = s.now()

	saved, err := s.repo.Upsert(ctx, profile)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}

	s.recordActivity(ctx, cmd.ActorID, "user.updated", "users/"+uid, map[string]any{
		"role":     string(saved.Role),
		"disabled": saved.Disabled,
	})

	return normaliseProfile(saved), nil
}

// DeleteUser removes a profile. Actors cannot delete themselves; the UI
// offers deletion only to admins and losing the acting account mid-session
// would strand the session.
func (s *userService) DeleteUser(ctx context.Context, cmd DeleteUserCommand) error {
	if s == nil || s.repo == nil {
		return ErrUserUnavailable
	}

	uid := strings.TrimSpace(cmd.UID)
	actor := strings.TrimSpace(cmd.ActorID)
	if uid == "" {
		return ErrUserInvalidInput
	}
	if actor != "" && strings.EqualFold(actor, uid) {
		return ErrUserSelfDelete
	}

	if _, err := s.repo.FindByUID(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}

	if err := s.repo.Delete(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}

	s.recordActivity(ctx, actor, "user.deleted", "users/"+uid, nil)
	return nil
}

func (s *userService) recordActivity(ctx context.Context, actor, action, targetRef string, metadata map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, ActivityRecord{
		Actor:      actor,
		ActorType:  "admin",
		Action:     action,
		TargetRef:  targetRef,
		Severity:   "info",
		OccurredAt: s.now(),
		Metadata:   metadata,
	})
}

func (s *userService) translateRepoError(err error) error {
	return mapRepoError(err, ErrUserNotFound, ErrUserUnavailable, ErrUserUnavailable)
}

func normaliseProfile(profile domain.UserProfile) domain.UserProfile {
	profile.UID = strings.TrimSpace(profile.UID)
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	profile.DisplayName = strings.TrimSpace(profile.DisplayName)
	if !profile.Role.Valid() {
		profile.Role = domain.RoleCustomer
	}
	return profile
}
