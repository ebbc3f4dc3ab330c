package service

import (
	"context"
	"strings"
	"time"

	"blogosphere/internal/auth"
	"blogosphere/internal/models"
	"blogosphere/internal/repository"
	"blogosphere/internal/validation"
)

const (
	maxNameLen     = 50
	maxBioLen      = 500
	maxLocationLen = 100
	maxUserPage    = 100
)

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uint) (string, time.Time, error)
}

type UserService struct {
	userRepo   repository.UserRepository
	tokens     TokenIssuer
	bcryptCost int
	now        func() time.Time
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Username  string
}

// AuthResult is returned by a successful login.
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// UpdateProfileInput is a partial profile update. Nil fields are left unchanged.
type UpdateProfileInput struct {
	FirstName          *string
	LastName           *string
	Username           *string
	Bio                *string
	Avatar             *string
	Location           *string
	Website            *string
	EmailNotifications *bool
	PublicProfile      *bool
}

type ListUsersInput struct {
	Limit    int
	Offset   int
	Role     string
	IsActive *bool
	Search   string
}

func NewUserService(userRepo repository.UserRepository, tokens TokenIssuer, bcryptCost int) *UserService {
	return &UserService{userRepo: userRepo, tokens: tokens, bcryptCost: bcryptCost, now: time.Now}
}

// Register creates an account. Email and username uniqueness are checked
// before insert; the unique indexes catch any race that slips past.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	username := strings.TrimSpace(in.Username)
	if username != "" {
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	} else {
		username = models.EmailLocalPart(email)
	}
	if err := checkNames(in.FirstName, in.LastName); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists with this email")
	}
	taken, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, models.NewConflictError("Username is already taken")
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Username:     username,
		Role:         models.RoleUser,
		IsActive:     true,
		Settings:     models.Settings{EmailNotifications: true, PublicProfile: true},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func checkNames(first, last string) error {
	if err := validation.MaxLength("firstName", strings.TrimSpace(first), maxNameLen); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.MaxLength("lastName", strings.TrimSpace(last), maxNameLen); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// Login verifies credentials and issues a token. Unknown emails and bad
// passwords share one message.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if !user.IsActive {
		return nil, models.NewUnauthorizedError("Account is deactivated")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if current == "" || next == "" {
		return models.NewValidationError("Current and new password are required")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}

	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.userRepo.UpdatePassword(ctx, userID, hash)
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := false
	setText := func(dst *string, src *string, field string, limit int) error {
		if src == nil {
			return nil
		}
		v := strings.TrimSpace(*src)
		if err := validation.MaxLength(field, v, limit); err != nil {
			return models.NewValidationError(err.Error())
		}
		*dst = v
		changed = true
		return nil
	}

	if err := setText(&user.FirstName, in.FirstName, "firstName", maxNameLen); err != nil {
		return nil, err
	}
	if err := setText(&user.LastName, in.LastName, "lastName", maxNameLen); err != nil {
		return nil, err
	}
	if err := setText(&user.Profile.Bio, in.Bio, "bio", maxBioLen); err != nil {
		return nil, err
	}
	if err := setText(&user.Profile.Avatar, in.Avatar, "avatar", 2048); err != nil {
		return nil, err
	}
	if err := setText(&user.Profile.Location, in.Location, "location", maxLocationLen); err != nil {
		return nil, err
	}
	if in.Website != nil {
		website := strings.TrimSpace(*in.Website)
		if err := validation.ValidateWebsite(website); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Profile.Website = website
		changed = true
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if username != user.Username {
			taken, err := s.userRepo.GetByUsername(ctx, username)
			if err != nil {
				return nil, err
			}
			if taken != nil && taken.ID != user.ID {
				return nil, models.NewConflictError("Username is already taken")
			}
			user.Username = username
		}
		changed = true
	}

	if in.EmailNotifications != nil {
		user.Settings.EmailNotifications = *in.EmailNotifications
		changed = true
	}
	if in.PublicProfile != nil {
		user.Settings.PublicProfile = *in.PublicProfile
		changed = true
	}

	if !changed {
		return nil, models.NewValidationError("No valid fields to update")
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetPublicUser returns the public view of a user. A private profile is
// reduced to its avatar for everyone except its owner.
func (s *UserService) GetPublicUser(ctx context.Context, id uint, c Caller) (*models.PublicUser, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	public := &models.PublicUser{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Profile:   user.Profile,
		CreatedAt: user.CreatedAt,
	}
	if !user.Settings.PublicProfile && c.UserID != user.ID {
		public.Profile = map[string]string{"avatar": user.Profile.Avatar}
	}
	return public, nil
}

func (s *UserService) ListUsers(ctx context.Context, in ListUsersInput) ([]models.User, int64, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxUserPage {
		limit = maxUserPage
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.List(ctx, repository.UserFilter{
		Role:     in.Role,
		IsActive: in.IsActive,
		Search:   in.Search,
	}, limit, offset)
}
