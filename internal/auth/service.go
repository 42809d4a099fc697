package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openforum/backend/internal/database"
	apierrors "github.com/openforum/backend/internal/errors"
	"github.com/openforum/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Credential verification failures carry their wire code so callers
	// can map them without string matching. Only ErrTokenExpired is
	// recoverable (via Refresh); the rest are fatal per ErrorCode.Fatal.
	ErrTokenMissing    = apierrors.Unauthenticated(apierrors.ErrTokenMissing, "no authentication token provided")
	ErrTokenExpired    = apierrors.Unauthenticated(apierrors.ErrTokenExpired, "token expired")
	ErrTokenInvalid    = apierrors.Unauthenticated(apierrors.ErrTokenInvalid, "invalid token")
	ErrRefreshRejected = apierrors.Unauthenticated(apierrors.ErrRefreshRejected, "refresh token rejected")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Identity is the resolved principal behind a verified bearer credential
type Identity struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// TokenPair is an access/refresh credential pair
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Service handles all authentication operations
type Service struct {
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a new authentication service
func NewService(jwtSecret []byte, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	TokenPair
	User models.User `json:"user"`
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new user with email/password
func (s *Service) Register(req RegisterRequest) (*AuthResponse, error) {
	// Check if user exists by email (case-insensitive)
	var existing models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Check if username is taken
	err = database.DB.Where("LOWER(username) = LOWER(?)", req.Username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		DisplayName:  req.Username,
		PasswordHash: string(hashed),
		Role:         models.RoleUser,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateAuthResponse(&user)
}

// Login authenticates with email/password
func (s *Service) Login(req LoginRequest) (*AuthResponse, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastActiveAt = &now
	database.DB.Save(&user)

	return s.generateAuthResponse(&user)
}

// generateAuthResponse creates a token pair and auth response
func (s *Service) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	pair, err := s.IssueTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{TokenPair: *pair, User: *user}, nil
}

// IssueTokenPair signs a fresh access/refresh pair for the user
func (s *Service) IssueTokenPair(user *models.User) (*TokenPair, error) {
	expiresAt := time.Now().Add(s.accessTTL)

	access, err := s.signToken(user, tokenTypeAccess, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := s.signToken(user, tokenTypeRefresh, time.Now().Add(s.refreshTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) signToken(user *models.User, tokenType string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"typ":      tokenType,
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyAccess validates a bearer credential and resolves its identity.
// Failures are typed: ErrTokenMissing, ErrTokenExpired, ErrTokenInvalid.
func (s *Service) VerifyAccess(tokenString string) (*Identity, error) {
	claims, err := s.parseToken(tokenString, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return s.Profile(claims["user_id"].(string))
}

// Refresh exchanges a refresh credential for a new token pair.
// Any failure is ErrRefreshRejected: the connection must close.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
	}

	userID, _ := claims["user_id"].(string)
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("%w: user not found", ErrRefreshRejected)
	}

	return s.IssueTokenPair(&user)
}

// ChangePassword verifies the current password and replaces it
func (s *Service) ChangePassword(userID, currentPassword, newPassword string) error {
	var user models.User
	err := database.DB.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := database.DB.Model(&user).Update("password_hash", string(hashed)).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// DeleteAccount permanently removes the user and their content. Likes
// and comments left by others on the user's posts go too; conversations
// survive for the remaining members, minus the deleted user's messages.
func (s *Service) DeleteAccount(userID string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM post_likes WHERE user_id = ? OR post_id IN (SELECT id FROM posts WHERE user_id = ?)", userID, userID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM comments WHERE user_id = ? OR post_id IN (SELECT id FROM posts WHERE user_id = ?)", userID, userID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_files WHERE post_id IN (SELECT id FROM posts WHERE user_id = ?)", userID).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM message_attachments WHERE message_id IN (SELECT id FROM messages WHERE sender_id = ?)", userID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM messages WHERE sender_id = ?", userID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM conversation_members WHERE user_id = ?", userID).Error; err != nil {
			return err
		}

		res := tx.Unscoped().Delete(&models.User{}, "id = ?", userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// Profile returns display attributes for envelope construction
func (s *Service) Profile(userID string) (*Identity, error) {
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return &Identity{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.ProfilePicture,
	}, nil
}

// parseToken validates signature, expiry and token type
func (s *Service) parseToken(tokenString, wantType string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if typ, _ := claims["typ"].(string); typ != wantType {
		return nil, fmt.Errorf("%w: wrong token type", ErrTokenInvalid)
	}

	if userID, _ := claims["user_id"].(string); userID == "" {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrTokenInvalid)
	}

	return claims, nil
}
