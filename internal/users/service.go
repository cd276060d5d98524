package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

const (
	inviteTTL          = 7 * 24 * time.Hour
	inviteRateWindow   = time.Hour
	inviteRatePerAdmin = 10
	minPasswordLength  = 8
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service implements account management: invites, acceptance, direct
// creation, deletion and login.
type Service struct {
	repo      Repository
	email     EmailSender
	issuer    *auth.TokenIssuer
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
	newToken  func() string
}

func NewService(repo Repository, email EmailSender, issuer *auth.TokenIssuer, inviteBaseURL string, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		email:    email,
		issuer:   issuer,
		baseURL:  strings.TrimRight(inviteBaseURL, "/"),
		logger:   logger,
		now:      time.Now,
		newToken: func() string { return uuid.NewString() + uuid.NewString() },
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Invite creates a pending invitation and emails the invite link. Invites
// are rate-limited per inviting admin.
func (s *Service) Invite(ctx context.Context, actor auth.Actor, req *InviteRequest) (*Invite, error) {
	if !actor.IsAdmin() {
		return nil, auth.ErrForbidden
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	if _, err := s.repo.GetProfileByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if err != ErrUserNotFound {
		return nil, err
	}

	count, err := s.repo.CountRecentInvites(ctx, actor.UserID, s.now().Add(-inviteRateWindow))
	if err != nil {
		return nil, err
	}
	if count >= inviteRatePerAdmin {
		return nil, ErrInviteRateLimited
	}

	role := req.Role
	if role == "" {
		role = workflows.RoleVisualizador
	}

	token := s.newToken()
	now := s.now()
	invite := &Invite{
		ID:        uuid.New(),
		Email:     email,
		Nome:      strings.TrimSpace(req.Nome),
		Role:      role,
		TokenHash: hashToken(token),
		CreatedBy: actor.UserID,
		SentAt:    now,
		ExpiresAt: now.Add(inviteTTL),
	}

	if err := s.repo.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}

	s.sendInviteMail(ctx, invite, token)

	return invite, nil
}

// ResendInvite regenerates the token and expiry of the latest pending
// invite for the email and sends it again.
func (s *Service) ResendInvite(ctx context.Context, actor auth.Actor, email string) (*Invite, error) {
	if !actor.IsAdmin() {
		return nil, auth.ErrForbidden
	}

	invite, err := s.repo.LatestInviteForEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	token := s.newToken()
	now := s.now()
	invite.TokenHash = hashToken(token)
	invite.SentAt = now
	invite.ExpiresAt = now.Add(inviteTTL)

	if err := s.repo.UpdateInvite(ctx, invite); err != nil {
		return nil, err
	}

	s.sendInviteMail(ctx, invite, token)

	return invite, nil
}

func (s *Service) sendInviteMail(ctx context.Context, invite *Invite, token string) {
	if s.email == nil {
		return
	}
	url := fmt.Sprintf("%s/set-password?token=%s", s.baseURL, token)
	if err := s.email.Send(ctx, invite.Email, "Convite - Permissões de Trabalho", inviteEmailBody(invite.Nome, url)); err != nil {
		// delivery failure is not fatal; the admin can resend
		s.logger.Error("Failed to send invite email",
			zap.String("email", invite.Email), zap.Error(err))
	}
}

// AcceptInvite turns a pending invite into an active account with the
// chosen password.
func (s *Service) AcceptInvite(ctx context.Context, req *AcceptInviteRequest) (*Profile, error) {
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password too short", ErrInvalidCredentials)
	}

	invite, err := s.repo.GetInviteByTokenHash(ctx, hashToken(req.Token))
	if err != nil {
		return nil, err
	}
	if invite.AcceptedAt != nil {
		return nil, ErrInviteNotFound
	}
	if s.now().After(invite.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &Profile{
		ID:           uuid.New(),
		Nome:         invite.Nome,
		Email:        invite.Email,
		PasswordHash: string(hash),
		Ativo:        true,
		CriadoEm:     s.now(),
	}
	if err := s.repo.CreateProfile(ctx, profile, invite.Role); err != nil {
		return nil, err
	}

	accepted := s.now()
	invite.AcceptedAt = &accepted
	if err := s.repo.UpdateInvite(ctx, invite); err != nil {
		s.logger.Warn("Failed to mark invite as accepted", zap.Error(err))
	}

	s.logger.Info("Invite accepted", zap.String("email", profile.Email))
	return profile, nil
}

// CreateUser lets an admin create an account directly with a password.
func (s *Service) CreateUser(ctx context.Context, actor auth.Actor, req *CreateUserRequest) (*Profile, error) {
	if !actor.IsAdmin() {
		return nil, auth.ErrForbidden
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password too short", ErrInvalidCredentials)
	}
	if _, err := s.repo.GetProfileByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if err != ErrUserNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &Profile{
		ID:           uuid.New(),
		Nome:         strings.TrimSpace(req.Nome),
		Email:        email,
		PasswordHash: string(hash),
		Ativo:        true,
		CriadoEm:     s.now(),
	}
	if err := s.repo.CreateProfile(ctx, profile, req.Role); err != nil {
		return nil, err
	}

	return profile, nil
}

// DeleteUser removes a user. Admins cannot delete their own account.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Actor, userID uuid.UUID) error {
	if !actor.IsAdmin() {
		return auth.ErrForbidden
	}
	if actor.UserID == userID {
		return ErrSelfDelete
	}
	return s.repo.DeleteProfile(ctx, userID)
}

// ListUsers returns all users with their roles.
func (s *Service) ListUsers(ctx context.Context, actor auth.Actor) ([]UserView, error) {
	if !actor.IsAdmin() {
		return nil, auth.ErrForbidden
	}
	return s.repo.ListUsers(ctx)
}

// AssignRole grants an additional role.
func (s *Service) AssignRole(ctx context.Context, actor auth.Actor, userID uuid.UUID, role workflows.Role) error {
	if !actor.IsAdmin() {
		return auth.ErrForbidden
	}
	return s.repo.AssignRole(ctx, userID, role)
}

// RevokeRole removes a role.
func (s *Service) RevokeRole(ctx context.Context, actor auth.Actor, userID uuid.UUID, role workflows.Role) error {
	if !actor.IsAdmin() {
		return auth.ErrForbidden
	}
	return s.repo.RevokeRole(ctx, userID, role)
}

// Deactivate disables a profile without deleting its audit trail.
func (s *Service) Deactivate(ctx context.Context, actor auth.Actor, userID uuid.UUID) error {
	if !actor.IsAdmin() {
		return auth.ErrForbidden
	}
	return s.repo.SetProfileAtivo(ctx, userID, false)
}

// Login verifies credentials and issues an access token carrying the
// user's role set.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (string, *Profile, error) {
	profile, err := s.repo.GetProfileByEmail(ctx, req.Email)
	if err != nil {
		if err == ErrUserNotFound {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !profile.Ativo {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	roles, err := s.repo.RolesFor(ctx, profile.ID)
	if err != nil {
		return "", nil, err
	}

	token, err := s.issuer.Issue(profile.ID, roles, s.now())
	if err != nil {
		return "", nil, err
	}
	return token, profile, nil
}
