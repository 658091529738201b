package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"fittrack/internal/domain"
	"fittrack/internal/repository"
	"fittrack/internal/service"
)

const testJWTSecret = "test-secret-do-not-use-in-prod"

// mockUserRepo is a hand-written test double for repository.UserRepository.
type mockUserRepo struct {
	create        func(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	getByID       func(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	getByUsername func(ctx context.Context, username string) (*domain.User, error)
	getByEmail    func(ctx context.Context, email string) (*domain.User, error)
	update        func(ctx context.Context, user *domain.User) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	return m.create(ctx, user)
}
func (m *mockUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return m.getByID(ctx, id)
}
func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.getByUsername(ctx, username)
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmail(ctx, email)
}
func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	return m.update(ctx, user)
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

// memoryTokenRepo keeps revoked token IDs in a map so logout/refresh flows
// can be tested end to end.
type memoryTokenRepo struct {
	revoked map[string]time.Time
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{revoked: make(map[string]time.Time)}
}

func (m *memoryTokenRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	m.revoked[jti] = expiresAt
	return nil
}

func (m *memoryTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, nil
}

var _ repository.TokenRepository = (*memoryTokenRepo)(nil)

// ---- fixtures --------------------------------------------------------------

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func emptyUserRepo() *mockUserRepo {
	return &mockUserRepo{
		getByUsername: func(ctx context.Context, username string) (*domain.User, error) {
			return nil, repository.ErrNotFound
		},
		getByEmail: func(ctx context.Context, email string) (*domain.User, error) {
			return nil, repository.ErrNotFound
		},
		create: func(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
			return primitive.NewObjectID(), nil
		},
	}
}

// ---- Register --------------------------------------------------------------

func TestAuthService_Register(t *testing.T) {
	var storedHash string
	userRepo := emptyUserRepo()
	userRepo.create = func(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
		storedHash = user.PasswordHash
		return primitive.NewObjectID(), nil
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	user, tokens, err := svc.Register(context.Background(), service.RegisterInput{
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		Password:  "strongpassword",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)

	assert.False(t, user.ID.IsZero())
	assert.Equal(t, "jdoe", user.Username)
	assert.Empty(t, user.PasswordHash, "response must not expose the hash")
	assert.NotEmpty(t, tokens.Access)
	assert.NotEmpty(t, tokens.Refresh)
	assert.NotEqual(t, tokens.Access, tokens.Refresh)

	// The stored hash must verify against the plaintext password.
	require.NotEmpty(t, storedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("strongpassword")))
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	userRepo := emptyUserRepo()
	userRepo.getByUsername = func(ctx context.Context, username string) (*domain.User, error) {
		return &domain.User{Username: username}, nil
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, _, err := svc.Register(context.Background(), service.RegisterInput{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Password: "strongpassword",
	})
	assert.ErrorIs(t, err, service.ErrUsernameTaken)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	userRepo := emptyUserRepo()
	userRepo.getByEmail = func(ctx context.Context, email string) (*domain.User, error) {
		return &domain.User{Email: email}, nil
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, _, err := svc.Register(context.Background(), service.RegisterInput{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Password: "strongpassword",
	})
	assert.ErrorIs(t, err, service.ErrEmailTaken)
}

// ---- Login -----------------------------------------------------------------

func TestAuthService_Login(t *testing.T) {
	userID := primitive.NewObjectID()
	hash := hashPassword(t, "strongpassword")
	userRepo := &mockUserRepo{
		getByUsername: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: userID, Username: username, PasswordHash: hash}, nil
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	user, tokens, err := svc.Login(context.Background(), "jdoe", "strongpassword")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Empty(t, user.PasswordHash)
	assert.NotEmpty(t, tokens.Access)
	assert.NotEmpty(t, tokens.Refresh)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	hash := hashPassword(t, "strongpassword")
	userRepo := &mockUserRepo{
		getByUsername: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: primitive.NewObjectID(), Username: username, PasswordHash: hash}, nil
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, _, err := svc.Login(context.Background(), "jdoe", "wrongpassword")
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	userRepo := &mockUserRepo{
		getByUsername: func(ctx context.Context, username string) (*domain.User, error) {
			return nil, repository.ErrNotFound
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, _, err := svc.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
}

// ---- Refresh / Logout ------------------------------------------------------

func TestAuthService_Refresh(t *testing.T) {
	userID := primitive.NewObjectID()
	hash := hashPassword(t, "strongpassword")
	userRepo := &mockUserRepo{
		getByUsername: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: userID, Username: username, PasswordHash: hash}, nil
		},
		getByID: func(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
			require.Equal(t, userID, id)
			return &domain.User{ID: userID, Username: "jdoe"}, nil
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, tokens, err := svc.Login(context.Background(), "jdoe", "strongpassword")
	require.NoError(t, err)

	access, err := svc.Refresh(context.Background(), tokens.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
}

func TestAuthService_Refresh_RejectsAccessToken(t *testing.T) {
	userID := primitive.NewObjectID()
	hash := hashPassword(t, "strongpassword")
	userRepo := &mockUserRepo{
		getByUsername: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: userID, Username: username, PasswordHash: hash}, nil
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, tokens, err := svc.Login(context.Background(), "jdoe", "strongpassword")
	require.NoError(t, err)

	// An access token must not work where a refresh token is expected.
	_, err = svc.Refresh(context.Background(), tokens.Access)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_Refresh_RejectsGarbage(t *testing.T) {
	svc := service.NewAuthService(emptyUserRepo(), newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_Logout_RevokesRefreshToken(t *testing.T) {
	userID := primitive.NewObjectID()
	hash := hashPassword(t, "strongpassword")
	userRepo := &mockUserRepo{
		getByUsername: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: userID, Username: username, PasswordHash: hash}, nil
		},
		getByID: func(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
			return &domain.User{ID: userID, Username: "jdoe"}, nil
		},
	}
	tokenRepo := newMemoryTokenRepo()
	svc := service.NewAuthService(userRepo, tokenRepo, testJWTSecret, time.Hour, 24*time.Hour)

	_, tokens, err := svc.Login(context.Background(), "jdoe", "strongpassword")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), tokens.Refresh))
	assert.Len(t, tokenRepo.revoked, 1)

	// A revoked refresh token can no longer mint access tokens.
	_, err = svc.Refresh(context.Background(), tokens.Refresh)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_Logout_InvalidToken(t *testing.T) {
	tokenRepo := newMemoryTokenRepo()
	svc := service.NewAuthService(emptyUserRepo(), tokenRepo, testJWTSecret, time.Hour, 24*time.Hour)

	err := svc.Logout(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, service.ErrInvalidToken)
	assert.Empty(t, tokenRepo.revoked)
}

// ---- Profile ---------------------------------------------------------------

func TestAuthService_UpdateProfile(t *testing.T) {
	userID := primitive.NewObjectID()
	var updated *domain.User
	userRepo := &mockUserRepo{
		getByID: func(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
			return &domain.User{
				ID:        userID,
				Username:  "jdoe",
				Email:     "jdoe@example.com",
				FirstName: "Jane",
				LastName:  "Doe",
			}, nil
		},
		update: func(ctx context.Context, user *domain.User) error {
			updated = user
			return nil
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	newEmail := "jane@example.com"
	newFirst := "Janet"
	user, err := svc.UpdateProfile(context.Background(), userID, service.ProfileUpdate{
		Email:     &newEmail,
		FirstName: &newFirst,
	})
	require.NoError(t, err)

	require.NotNil(t, updated)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, "Janet", user.FirstName)
	// Fields left nil stay untouched.
	assert.Equal(t, "Doe", user.LastName)
	assert.Equal(t, "jdoe", user.Username)
}

func TestAuthService_UpdateProfile_EmailTaken(t *testing.T) {
	userID := primitive.NewObjectID()
	userRepo := &mockUserRepo{
		getByID: func(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
			return &domain.User{ID: userID, Username: "jdoe", Email: "jdoe@example.com"}, nil
		},
		update: func(ctx context.Context, user *domain.User) error {
			return repository.ErrDuplicate
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	taken := "taken@example.com"
	_, err := svc.UpdateProfile(context.Background(), userID, service.ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, service.ErrEmailTaken)
}

func TestAuthService_GetProfile_NotFound(t *testing.T) {
	userRepo := &mockUserRepo{
		getByID: func(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
			return nil, repository.ErrNotFound
		},
	}
	svc := service.NewAuthService(userRepo, newMemoryTokenRepo(), testJWTSecret, time.Hour, 24*time.Hour)

	_, err := svc.GetProfile(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
