package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockUserRepository) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockUserRepository) ListUsers(ctx context.Context) ([]UserView, error) {
	args := m.Called(ctx)
	return args.Get(0).([]UserView), args.Error(1)
}

func (m *MockUserRepository) CreateProfile(ctx context.Context, profile *Profile, role workflows.Role) error {
	args := m.Called(ctx, profile, role)
	return args.Error(0)
}

func (m *MockUserRepository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) SetProfileAtivo(ctx context.Context, id uuid.UUID, ativo bool) error {
	args := m.Called(ctx, id, ativo)
	return args.Error(0)
}

func (m *MockUserRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserRepository) RolesFor(ctx context.Context, userID uuid.UUID) (workflows.RoleSet, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(workflows.RoleSet), args.Error(1)
}

func (m *MockUserRepository) AssignRole(ctx context.Context, userID uuid.UUID, role workflows.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockUserRepository) RevokeRole(ctx context.Context, userID uuid.UUID, role workflows.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockUserRepository) CreateInvite(ctx context.Context, invite *Invite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockUserRepository) GetInviteByTokenHash(ctx context.Context, tokenHash string) (*Invite, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invite), args.Error(1)
}

func (m *MockUserRepository) LatestInviteForEmail(ctx context.Context, email string) (*Invite, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invite), args.Error(1)
}

func (m *MockUserRepository) UpdateInvite(ctx context.Context, invite *Invite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockUserRepository) CountRecentInvites(ctx context.Context, createdBy uuid.UUID, since time.Time) (int64, error) {
	args := m.Called(ctx, createdBy, since)
	return args.Get(0).(int64), args.Error(1)
}

type fakeEmailSender struct {
	sent []string
}

func (f *fakeEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.sent = append(f.sent, to)
	return nil
}

func adminActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Roles: workflows.NewRoleSet(workflows.RoleAdmin)}
}

func newUserService(repo Repository, email EmailSender, now time.Time) *Service {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	s := NewService(repo, email, issuer, "https://tracker.example.com", zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestInviteHappyPath(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := &MockUserRepository{}
	repo.On("GetProfileByEmail", mock.Anything, "novo@example.com").Return(nil, ErrUserNotFound)
	repo.On("CountRecentInvites", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	repo.On("CreateInvite", mock.Anything, mock.AnythingOfType("*users.Invite")).Return(nil)

	mail := &fakeEmailSender{}
	svc := newUserService(repo, mail, now)

	invite, err := svc.Invite(context.Background(), adminActor(), &InviteRequest{
		Email: "Novo@Example.com",
		Nome:  "Novo Usuário",
		Role:  workflows.RoleEncarregado,
	})
	require.NoError(t, err)

	assert.Equal(t, "novo@example.com", invite.Email)
	assert.Equal(t, workflows.RoleEncarregado, invite.Role)
	assert.Equal(t, now.Add(7*24*time.Hour), invite.ExpiresAt)
	assert.NotEmpty(t, invite.TokenHash)
	assert.Equal(t, []string{"novo@example.com"}, mail.sent)
}

func TestInviteRequiresAdmin(t *testing.T) {
	svc := newUserService(&MockUserRepository{}, nil, time.Now())

	actor := auth.Actor{UserID: uuid.New(), Roles: workflows.NewRoleSet(workflows.RoleEncarregado)}
	_, err := svc.Invite(context.Background(), actor, &InviteRequest{Email: "a@b.co", Nome: "A"})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestInviteExistingEmailRejected(t *testing.T) {
	repo := &MockUserRepository{}
	repo.On("GetProfileByEmail", mock.Anything, "taken@example.com").
		Return(&Profile{ID: uuid.New(), Email: "taken@example.com"}, nil)

	svc := newUserService(repo, nil, time.Now())

	_, err := svc.Invite(context.Background(), adminActor(), &InviteRequest{
		Email: "taken@example.com", Nome: "X",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestInviteRateLimited(t *testing.T) {
	repo := &MockUserRepository{}
	repo.On("GetProfileByEmail", mock.Anything, mock.Anything).Return(nil, ErrUserNotFound)
	repo.On("CountRecentInvites", mock.Anything, mock.Anything, mock.Anything).Return(int64(10), nil)

	svc := newUserService(repo, nil, time.Now())

	_, err := svc.Invite(context.Background(), adminActor(), &InviteRequest{
		Email: "novo@example.com", Nome: "X",
	})
	assert.ErrorIs(t, err, ErrInviteRateLimited)
}

func TestInviteInvalidEmail(t *testing.T) {
	svc := newUserService(&MockUserRepository{}, nil, time.Now())

	_, err := svc.Invite(context.Background(), adminActor(), &InviteRequest{
		Email: "not-an-email", Nome: "X",
	})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestAcceptInvite(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	token := "raw-token"
	invite := &Invite{
		ID:        uuid.New(),
		Email:     "novo@example.com",
		Nome:      "Novo",
		Role:      workflows.RoleOperador,
		TokenHash: hashToken(token),
		SentAt:    now.Add(-time.Hour),
		ExpiresAt: now.Add(6 * 24 * time.Hour),
	}

	repo := &MockUserRepository{}
	repo.On("GetInviteByTokenHash", mock.Anything, hashToken(token)).Return(invite, nil)
	var created *Profile
	repo.On("CreateProfile", mock.Anything, mock.AnythingOfType("*users.Profile"), workflows.RoleOperador).
		Run(func(args mock.Arguments) { created = args.Get(1).(*Profile) }).Return(nil)
	repo.On("UpdateInvite", mock.Anything, invite).Return(nil)

	svc := newUserService(repo, nil, now)

	profile, err := svc.AcceptInvite(context.Background(), &AcceptInviteRequest{
		Token: token, Password: "long-enough-password",
	})
	require.NoError(t, err)

	assert.Equal(t, "novo@example.com", profile.Email)
	assert.True(t, profile.Ativo)
	require.NotNil(t, created)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("long-enough-password")))
	require.NotNil(t, invite.AcceptedAt)
}

func TestAcceptInviteExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	token := "raw-token"
	invite := &Invite{
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(-time.Minute),
	}

	repo := &MockUserRepository{}
	repo.On("GetInviteByTokenHash", mock.Anything, hashToken(token)).Return(invite, nil)

	svc := newUserService(repo, nil, now)

	_, err := svc.AcceptInvite(context.Background(), &AcceptInviteRequest{
		Token: token, Password: "long-enough-password",
	})
	assert.ErrorIs(t, err, ErrInviteExpired)
}

func TestResendInviteRegeneratesToken(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	invite := &Invite{
		ID:        uuid.New(),
		Email:     "novo@example.com",
		Nome:      "Novo",
		TokenHash: "old-hash",
		SentAt:    now.Add(-8 * 24 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
	}

	repo := &MockUserRepository{}
	repo.On("LatestInviteForEmail", mock.Anything, "novo@example.com").Return(invite, nil)
	repo.On("UpdateInvite", mock.Anything, invite).Return(nil)

	mail := &fakeEmailSender{}
	svc := newUserService(repo, mail, now)

	updated, err := svc.ResendInvite(context.Background(), adminActor(), "novo@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, "old-hash", updated.TokenHash)
	assert.Equal(t, now.Add(7*24*time.Hour), updated.ExpiresAt)
	assert.Len(t, mail.sent, 1)
}

func TestDeleteUserSelfDeleteGuard(t *testing.T) {
	svc := newUserService(&MockUserRepository{}, nil, time.Now())

	actor := adminActor()
	err := svc.DeleteUser(context.Background(), actor, actor.UserID)
	assert.ErrorIs(t, err, ErrSelfDelete)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	profile := &Profile{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Ativo:        true,
	}

	repo := &MockUserRepository{}
	repo.On("GetProfileByEmail", mock.Anything, "user@example.com").Return(profile, nil)
	repo.On("RolesFor", mock.Anything, profile.ID).Return(workflows.NewRoleSet(workflows.RoleOperador), nil)

	svc := newUserService(repo, nil, time.Now())

	token, got, err := svc.Login(context.Background(), &LoginRequest{
		Email: "user@example.com", Password: "correct-password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, profile.ID, got.ID)

	_, _, err = svc.Login(context.Background(), &LoginRequest{
		Email: "user@example.com", Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveProfileRejected(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw12345678"), bcrypt.DefaultCost)
	profile := &Profile{ID: uuid.New(), Email: "off@example.com", PasswordHash: string(hash), Ativo: false}

	repo := &MockUserRepository{}
	repo.On("GetProfileByEmail", mock.Anything, "off@example.com").Return(profile, nil)

	svc := newUserService(repo, nil, time.Now())

	_, _, err := svc.Login(context.Background(), &LoginRequest{Email: "off@example.com", Password: "pw12345678"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
