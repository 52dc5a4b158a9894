// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/cinemadb/internal/auth"
	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/events"
	"github.com/carterperez-dev/cinemadb/internal/media"
	"github.com/carterperez-dev/cinemadb/internal/resource"
)

const MsgRequired = "This field is required."

type ImageStore interface {
	Decode(raw string) (media.Image, error)
	Save(ctx context.Context, folder string, img media.Image) (string, error)
	Remove(rel string) error
	PublicURL(rel string) string
}

// NewAccount is the input of CreateUser. Password is plain text.
type NewAccount struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
	Role      string
	IsStaff   bool
	Verified  bool
}

// Service owns accounts. It backs the self-service routes, the staff
// resource routes and the token flows.
type Service struct {
	repo     Repository
	images   ImageStore
	events   events.Publisher
	validate *validator.Validate
}

func NewService(repo Repository, images ImageStore, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		repo:     repo,
		images:   images,
		events:   pub,
		validate: core.NewValidator(),
	}
}

var (
	_ auth.UserProvider                              = (*Service)(nil)
	_ resource.Store[*Account]                       = (*Service)(nil)
	_ resource.Serializer[*Account, AccountResponse] = (*Service)(nil)
)

// CreateUser normalizes the email, hashes the password and stores the
// account. Duplicate email or username come back as field errors.
func (s *Service) CreateUser(ctx context.Context, in NewAccount) (*Account, error) {
	return s.createAccount(ctx, in, nil)
}

// CreateSuperuser is CreateUser for a verified staff owner.
func (s *Service) CreateSuperuser(ctx context.Context, email, username, password string) (*Account, error) {
	return s.CreateUser(ctx, NewAccount{
		Email:    email,
		Username: username,
		Password: password,
		Role:     RoleOwner,
		IsStaff:  true,
		Verified: true,
	})
}

// Register creates a customer account from a sign-up body.
func (s *Service) Register(ctx context.Context, body []byte) (*Account, error) {
	ctx, span := core.StartSpan(ctx, "user", "user.register")
	defer span.End()

	var req CreateAccountRequest
	if err := core.UnmarshalJSON(body, &req); err != nil {
		return nil, err
	}

	verr := s.check(req)
	checkRePassword(req, verr)
	picture := s.decodePicture(req.Picture, verr)
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	return s.createAccount(ctx, newAccountFrom(req), picture)
}

// Create is the staff variant of Register and may set privileged fields.
func (s *Service) Create(ctx context.Context, body []byte) (*Account, error) {
	var req StaffCreateRequest
	if err := core.UnmarshalJSON(body, &req); err != nil {
		return nil, err
	}

	verr := s.check(req)
	checkRePassword(req.CreateAccountRequest, verr)
	picture := s.decodePicture(req.Picture, verr)
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	in := newAccountFrom(req.CreateAccountRequest)
	if req.Role != nil {
		in.Role = *req.Role
	}
	if req.IsStaff != nil {
		in.IsStaff = *req.IsStaff
	}
	if req.Verified != nil {
		in.Verified = *req.Verified
	}

	return s.createAccount(ctx, in, picture)
}

func (s *Service) createAccount(ctx context.Context, in NewAccount, picture *media.Image) (*Account, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, core.FieldError("email", MsgRequired)
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, core.FieldError("username", MsgRequired)
	}
	if in.Password == "" {
		return nil, core.FieldError("password", MsgRequired)
	}

	if err := s.ensureUnique(ctx, email, in.Username, ""); err != nil {
		return nil, err
	}

	hash, err := core.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = RoleCustomer
	}

	a := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     strings.TrimSpace(in.Username),
		Phone:        in.Phone,
		Picture:      DefaultPicture,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      in.IsStaff,
		Role:         role,
		Verified:     in.Verified,
	}

	if picture != nil {
		rel, err := s.images.Save(ctx, media.FolderUserPictures, *picture)
		if err != nil {
			return nil, fmt.Errorf("save picture: %w", err)
		}
		a.Picture = rel
	}

	if err := s.repo.Create(ctx, a); err != nil {
		s.removePicture(a.Picture)
		core.SetSpanError(ctx, err)
		return nil, err
	}

	core.AddSpanEvent(ctx, "user.created", attribute.String("user.id", a.ID))
	events.Emit(ctx, s.events, events.AccountRegistered, events.AccountRegisteredEvent{
		ID:       a.ID,
		Email:    a.Email,
		Username: a.Username,
	})

	return a, nil
}

// Me returns the account behind the current request.
func (s *Service) Me(ctx context.Context, userID string) (*Account, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile applies a self-service update. PUT and PATCH both land here
// and only the fields present in the body change.
func (s *Service) UpdateProfile(ctx context.Context, userID string, body []byte) (*Account, error) {
	existing, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	var req UpdateProfileRequest
	if err := core.UnmarshalJSON(body, &req); err != nil {
		return nil, err
	}

	verr := s.check(req)
	picture := s.decodePicture(req.Picture, verr)
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	a := *existing
	applyProfile(&a, req)

	return s.save(ctx, existing, &a, picture)
}

// Update is the staff edit behind PUT/PATCH /users/{id}.
func (s *Service) Update(ctx context.Context, existing *Account, body []byte) (*Account, error) {
	var req StaffUpdateRequest
	if err := core.UnmarshalJSON(body, &req); err != nil {
		return nil, err
	}

	verr := s.check(req)
	picture := s.decodePicture(req.Picture, verr)
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	a := *existing
	applyProfile(&a, req.UpdateProfileRequest)
	if req.Email != nil {
		a.Email = NormalizeEmail(*req.Email)
	}
	if req.Role != nil {
		a.Role = *req.Role
	}
	if req.IsStaff != nil {
		a.IsStaff = *req.IsStaff
	}
	if req.Verified != nil {
		a.Verified = *req.Verified
	}

	return s.save(ctx, existing, &a, picture)
}

func (s *Service) save(ctx context.Context, existing, a *Account, picture *media.Image) (*Account, error) {
	ctx, span := core.StartSpan(ctx, "user", "user.update", attribute.String("user.id", a.ID))
	defer span.End()

	email, username := "", ""
	if a.Email != existing.Email {
		email = a.Email
	}
	if a.Username != existing.Username {
		username = a.Username
	}
	if err := s.ensureUnique(ctx, email, username, a.ID); err != nil {
		return nil, err
	}

	if picture != nil {
		rel, err := s.images.Save(ctx, media.FolderUserPictures, *picture)
		if err != nil {
			return nil, fmt.Errorf("save picture: %w", err)
		}
		a.Picture = rel
	}

	if err := s.repo.Update(ctx, a); err != nil {
		if picture != nil {
			s.removePicture(a.Picture)
		}
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if picture != nil {
		s.removePicture(existing.Picture)
	}

	return a, nil
}

// DeleteMe deactivates the caller after re-checking the password.
func (s *Service) DeleteMe(ctx context.Context, userID string, body []byte) error {
	a, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}

	var req DeleteAccountRequest
	if err := core.UnmarshalJSON(body, &req); err != nil {
		return err
	}
	if err := s.check(req).ErrOrNil(); err != nil {
		return err
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, a.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return core.FieldError("current_password", auth.MsgInvalidPassword)
	}

	if _, err := s.repo.SetActive(ctx, a.ID, false); err != nil {
		return err
	}

	return s.repo.IncrementTokenVersion(ctx, a.ID)
}

func (s *Service) Count(ctx context.Context, q resource.ListQuery) (int, error) {
	return s.repo.Count(ctx, q)
}

func (s *Service) List(ctx context.Context, q resource.ListQuery) ([]*Account, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*Account, error) {
	return s.repo.SetActive(ctx, id, active)
}

func (s *Service) Represent(_ context.Context, a *Account) AccountResponse {
	var publicURL func(string) string
	if s.images != nil {
		publicURL = s.images.PublicURL
	}
	return ToAccountResponse(a, publicURL)
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(a), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return toUserInfo(a), nil
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) SetOnline(ctx context.Context, userID string, online bool) error {
	return s.repo.SetOnline(ctx, userID, online)
}

func (s *Service) check(req any) *core.ValidationError {
	if err := s.validate.Struct(req); err != nil {
		return core.FormatValidationError(err)
	}
	return core.NewValidationError()
}

func (s *Service) ensureUnique(ctx context.Context, email, username, excludeID string) error {
	verr := core.NewValidationError()

	if email != "" {
		taken, err := s.repo.ExistsByEmail(ctx, email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("email", MsgEmailExists)
		}
	}

	if username != "" {
		taken, err := s.repo.ExistsByUsername(ctx, username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("username", MsgUsernameExists)
		}
	}

	return verr.ErrOrNil()
}

func (s *Service) decodePicture(raw *string, verr *core.ValidationError) *media.Image {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	if s.images == nil {
		verr.Add("picture", media.MsgInvalidImage)
		return nil
	}

	img, err := s.images.Decode(*raw)
	if err != nil {
		msg := media.MsgInvalidImage
		if errors.Is(err, media.ErrImageTooLarge) {
			msg = "The submitted file is too large."
		}
		verr.Add("picture", msg)
		return nil
	}
	return &img
}

func (s *Service) removePicture(rel string) {
	if s.images == nil || rel == "" || rel == DefaultPicture {
		return
	}
	if err := s.images.Remove(rel); err != nil {
		slog.Warn("media cleanup failed", "error", err, "path", rel)
	}
}

func checkRePassword(req CreateAccountRequest, verr *core.ValidationError) {
	if req.RePassword != nil && *req.RePassword != req.Password {
		verr.Add(core.NonFieldErrors, MsgPasswordsDiffer)
	}
}

func newAccountFrom(req CreateAccountRequest) NewAccount {
	return NewAccount{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}
}

func applyProfile(a *Account, req UpdateProfileRequest) {
	if req.Username != nil {
		a.Username = strings.TrimSpace(*req.Username)
	}
	if req.FirstName != nil {
		a.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		a.LastName = *req.LastName
	}
	if req.Phone != nil {
		a.Phone = req.Phone
	}
}

func toUserInfo(a *Account) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           a.ID,
		Email:        a.Email,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		Staff:        a.IsStaff || a.Role == RoleAdmin || a.Role == RoleOwner,
		IsActive:     a.IsActive,
		TokenVersion: a.TokenVersion,
	}
}
