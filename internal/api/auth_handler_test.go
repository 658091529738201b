package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fittrack/internal/domain"
	"fittrack/internal/service"
)

func sampleUser(id primitive.ObjectID) *domain.User {
	return &domain.User{
		ID:        id,
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		CreatedAt: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

// ---- Register --------------------------------------------------------------

func TestRegister(t *testing.T) {
	userID := primitive.NewObjectID()
	authSvc := &mockAuthService{
		register: func(ctx context.Context, input service.RegisterInput) (*domain.User, service.TokenPair, error) {
			assert.Equal(t, "jdoe", input.Username)
			assert.Equal(t, "jdoe@example.com", input.Email)
			return sampleUser(userID), service.TokenPair{Access: "access-token", Refresh: "refresh-token"}, nil
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/register/", "", gin.H{
		"username":         "jdoe",
		"email":            "jdoe@example.com",
		"password":         "strongpassword",
		"password_confirm": "strongpassword",
		"first_name":       "Jane",
		"last_name":        "Doe",
	})

	require.Equal(t, http.StatusCreated, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "User registered successfully", body["message"])

	user := body["user"].(map[string]any)
	assert.Equal(t, userID.Hex(), user["id"])
	assert.Equal(t, "jdoe", user["username"])
	assert.NotContains(t, user, "password")

	tokens := body["tokens"].(map[string]any)
	assert.Equal(t, "access-token", tokens["access"])
	assert.Equal(t, "refresh-token", tokens["refresh"])
}

func TestRegister_PasswordMismatch(t *testing.T) {
	router := setupRouter(&mockAuthService{}, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/register/", "", gin.H{
		"username":         "jdoe",
		"email":            "jdoe@example.com",
		"password":         "strongpassword",
		"password_confirm": "differentpassword",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRegister_Conflict(t *testing.T) {
	authSvc := &mockAuthService{
		register: func(ctx context.Context, input service.RegisterInput) (*domain.User, service.TokenPair, error) {
			return nil, service.TokenPair{}, service.ErrUsernameTaken
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/register/", "", gin.H{
		"username":         "jdoe",
		"email":            "jdoe@example.com",
		"password":         "strongpassword",
		"password_confirm": "strongpassword",
	})

	require.Equal(t, http.StatusConflict, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Contains(t, body["error"], "already exists")
}

// ---- Login -----------------------------------------------------------------

func TestLogin_InvalidCredentials(t *testing.T) {
	authSvc := &mockAuthService{
		login: func(ctx context.Context, username, password string) (*domain.User, service.TokenPair, error) {
			return nil, service.TokenPair{}, service.ErrAuthenticationFailed
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/login/", "", gin.H{
		"username": "jdoe",
		"password": "wrongpassword",
	})

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "invalid credentials", body["error"])
}

func TestLogin(t *testing.T) {
	userID := primitive.NewObjectID()
	authSvc := &mockAuthService{
		login: func(ctx context.Context, username, password string) (*domain.User, service.TokenPair, error) {
			return sampleUser(userID), service.TokenPair{Access: "a", Refresh: "r"}, nil
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/login/", "", gin.H{
		"username": "jdoe",
		"password": "strongpassword",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "Login successful", body["message"])
}

// ---- Refresh / Logout ------------------------------------------------------

func TestRefresh(t *testing.T) {
	authSvc := &mockAuthService{
		refresh: func(ctx context.Context, refreshToken string) (string, error) {
			assert.Equal(t, "valid-refresh", refreshToken)
			return "new-access", nil
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/token/refresh/", "", gin.H{
		"refresh": "valid-refresh",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "new-access", body["access"])
}

func TestRefresh_InvalidToken(t *testing.T) {
	authSvc := &mockAuthService{
		refresh: func(ctx context.Context, refreshToken string) (string, error) {
			return "", service.ErrInvalidToken
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/token/refresh/", "", gin.H{
		"refresh": "revoked-or-garbage",
	})

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "Invalid token", body["error"])
}

func TestLogout(t *testing.T) {
	var revokedToken string
	authSvc := &mockAuthService{
		logout: func(ctx context.Context, refreshToken string) error {
			revokedToken = refreshToken
			return nil
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/logout/",
		signToken(t, primitive.NewObjectID(), "access"), gin.H{
			"refresh_token": "the-refresh-token",
		})

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "Logout successful", body["message"])
	assert.Equal(t, "the-refresh-token", revokedToken)
}

func TestLogout_MissingToken(t *testing.T) {
	router := setupRouter(&mockAuthService{}, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/logout/",
		signToken(t, primitive.NewObjectID(), "access"), gin.H{})

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "Refresh token is required", body["error"])
}

func TestLogout_InvalidToken(t *testing.T) {
	authSvc := &mockAuthService{
		logout: func(ctx context.Context, refreshToken string) error {
			return service.ErrInvalidToken
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/logout/",
		signToken(t, primitive.NewObjectID(), "access"), gin.H{
			"refresh_token": "garbage",
		})

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "Invalid token", body["error"])
}

func TestLogout_RequiresAuth(t *testing.T) {
	router := setupRouter(&mockAuthService{}, &mockActivityService{})

	recorder := doRequest(router, http.MethodPost, "/api/auth/logout/", "", gin.H{
		"refresh_token": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

// ---- Profile ---------------------------------------------------------------

func TestGetProfile(t *testing.T) {
	userID := primitive.NewObjectID()
	authSvc := &mockAuthService{
		getProfile: func(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
			assert.Equal(t, userID, id)
			return sampleUser(userID), nil
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodGet, "/api/auth/profile/",
		signToken(t, userID, "access"), nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, userID.Hex(), body["id"])
	assert.Equal(t, "jdoe", body["username"])
	assert.Equal(t, "Jane", body["first_name"])
	assert.NotContains(t, body, "password")
}

func TestUpdateProfile(t *testing.T) {
	userID := primitive.NewObjectID()
	authSvc := &mockAuthService{
		updateProfile: func(ctx context.Context, id primitive.ObjectID, update service.ProfileUpdate) (*domain.User, error) {
			require.NotNil(t, update.Email)
			assert.Equal(t, "jane@example.com", *update.Email)
			assert.Nil(t, update.LastName)

			user := sampleUser(id)
			user.Email = *update.Email
			return user, nil
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPatch, "/api/auth/profile/",
		signToken(t, userID, "access"), gin.H{
			"email": "jane@example.com",
		})

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "jane@example.com", body["email"])
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	authSvc := &mockAuthService{
		updateProfile: func(ctx context.Context, id primitive.ObjectID, update service.ProfileUpdate) (*domain.User, error) {
			return nil, service.ErrEmailTaken
		},
	}
	router := setupRouter(authSvc, &mockActivityService{})

	recorder := doRequest(router, http.MethodPatch, "/api/auth/profile/",
		signToken(t, primitive.NewObjectID(), "access"), gin.H{
			"email": "taken@example.com",
		})
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

// ---- Dashboard -------------------------------------------------------------

func TestDashboard(t *testing.T) {
	userID := primitive.NewObjectID()
	authSvc := &mockAuthService{
		getProfile: func(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
			return sampleUser(id), nil
		},
	}
	activitySvc := &mockActivityService{
		dashboard: func(ctx context.Context, owner primitive.ObjectID) (int64, []service.ActivityDetail, error) {
			return 12, []service.ActivityDetail{*sampleDetail(owner)}, nil
		},
	}
	router := setupRouter(authSvc, activitySvc)

	recorder := doRequest(router, http.MethodGet, "/api/auth/dashboard/",
		signToken(t, userID, "access"), nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)

	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(12), stats["total_activities"])
	assert.Equal(t, float64(1), stats["recent_activities_count"])

	recent := body["recent_activities"].([]any)
	require.Len(t, recent, 1)
	first := recent[0].(map[string]any)
	assert.Equal(t, "Morning run", first["title"])
	assert.Equal(t, "jdoe", first["user"].(map[string]any)["username"])
}
