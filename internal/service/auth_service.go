package service

import (
	"context"
	"errors"
	"time"

	"fittrack/internal/domain"
	"fittrack/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// AuthClaims is the JWT payload shared by access and refresh tokens.
type AuthClaims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// userObjectID converts the hex user ID claim back to an ObjectID.
// parseToken has already validated the hex form.
func (c *AuthClaims) userObjectID() primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(c.UserID)
	return id
}

// --- Error Definitions ---
var (
	ErrUsernameTaken        = errors.New("user with this username already exists")
	ErrEmailTaken           = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
	ErrInvalidToken         = errors.New("invalid token")
	ErrUserNotFound         = errors.New("user not found")
)

// Token type markers carried in the "typ" claim so access tokens can't be
// replayed as refresh tokens and vice versa.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenPair bundles the short-lived access token with the long-lived refresh
// token, mirroring the register/login response shape.
type TokenPair struct {
	Access  string
	Refresh string
}

// RegisterInput carries validated registration fields into the service.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ProfileUpdate carries the profile fields a user may change. Nil means
// "leave unchanged"; the username is immutable.
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// --- Service Interface ---
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, TokenPair, error)
	Login(ctx context.Context, username, password string) (*domain.User, TokenPair, error)
	// Refresh exchanges a valid, unrevoked refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (string, error)
	// Logout revokes the refresh token so it can no longer be exchanged.
	Logout(ctx context.Context, refreshToken string) error
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, update ProfileUpdate) (*domain.User, error)
}

// --- Service Implementation ---

// authService implements the AuthService interface.
type authService struct {
	userRepo          repository.UserRepository
	tokenRepo         repository.TokenRepository
	jwtSecret         string
	accessExpiration  time.Duration
	refreshExpiration time.Duration
}

// NewAuthService creates a new instance of authService.
func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, jwtSecret string, accessExpiration, refreshExpiration time.Duration) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if accessExpiration <= 0 {
		accessExpiration = time.Hour
	}
	if refreshExpiration <= 0 {
		refreshExpiration = 24 * time.Hour
	}
	return &authService{
		userRepo:          userRepo,
		tokenRepo:         tokenRepo,
		jwtSecret:         jwtSecret,
		accessExpiration:  accessExpiration,
		refreshExpiration: refreshExpiration,
	}
}

// Register handles new user registration and issues the initial token pair.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.User, TokenPair, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, TokenPair{}, errors.New("username, email and password cannot be empty")
	}

	// Check username and email availability before hashing anything.
	if _, err := s.userRepo.GetByUsername(ctx, input.Username); err == nil {
		return nil, TokenPair{}, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, TokenPair{}, err
	}
	if _, err := s.userRepo.GetByEmail(ctx, input.Email); err == nil {
		return nil, TokenPair{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, TokenPair{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, TokenPair{}, ErrHashingFailed
	}

	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		// ID, CreatedAt, UpdatedAt are set by the repository layer.
	}

	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		// The unique indexes close the race between the availability checks
		// above and this insert.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, TokenPair{}, ErrUsernameTaken
		}
		return nil, TokenPair{}, err
	}
	user.ID = userID

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, TokenPair{}, ErrTokenGeneration
	}

	user.PasswordHash = ""
	return user, tokens, nil
}

// Login authenticates by username and password and issues a token pair.
func (s *authService) Login(ctx context.Context, username, password string) (*domain.User, TokenPair, error) {
	if username == "" || password == "" {
		return nil, TokenPair{}, ErrAuthenticationFailed
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Unknown username maps to the same failure as a bad password.
			return nil, TokenPair{}, ErrAuthenticationFailed
		}
		return nil, TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, TokenPair{}, ErrAuthenticationFailed
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, TokenPair{}, ErrTokenGeneration
	}

	user.PasswordHash = ""
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a new access token. Revoked, expired
// or otherwise invalid tokens all map to ErrInvalidToken.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return "", ErrInvalidToken
	}

	revoked, err := s.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.userObjectID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}

	access, err := s.generateToken(user, tokenTypeAccess, s.accessExpiration)
	if err != nil {
		return "", ErrTokenGeneration
	}
	return access, nil
}

// Logout revokes the refresh token. An invalid or expired token is reported
// as ErrInvalidToken rather than failing the request harder.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return ErrInvalidToken
	}

	expiresAt := time.Now().UTC().Add(s.refreshExpiration)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return s.tokenRepo.Revoke(ctx, claims.ID, expiresAt)
}

// GetProfile retrieves the authenticated user's own record.
func (s *authService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile applies the requested profile changes and returns the
// updated user. The username never changes.
func (s *authService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, update ProfileUpdate) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

// --- JWT Helpers ---

// generateTokenPair issues the access/refresh pair returned by register and login.
func (s *authService) generateTokenPair(user *domain.User) (TokenPair, error) {
	access, err := s.generateToken(user, tokenTypeAccess, s.accessExpiration)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.generateToken(user, tokenTypeRefresh, s.refreshExpiration)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// generateToken creates a signed HS256 token for the given user.
// Every token carries a unique jti so refresh tokens can be revoked individually.
func (s *authService) generateToken(user *domain.User, tokenType string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := &AuthClaims{
		UserID:    user.ID.Hex(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "fittrack",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// parseToken validates signature, expiry and token type.
func (s *authService) parseToken(tokenString, wantType string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" || claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if _, err := primitive.ObjectIDFromHex(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
