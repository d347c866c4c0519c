package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/models"
	"github.com/quotagate/quotagate/internal/repository"
	"github.com/quotagate/quotagate/internal/storage"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrAccountExists      = errors.New("account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPlan        = errors.New("no plan exists with the provided id")
)

type AuthService struct {
	db            *storage.Postgres
	users         *repository.UserRepository
	plans         *repository.PlanRepository
	subscriptions *repository.SubscriptionRepository
	jwtSecret     []byte // Stored in env (JWT_SECRET)
	jwtExpiry     time.Duration
}

func NewAuthService(db *storage.Postgres, users *repository.UserRepository, plans *repository.PlanRepository, subscriptions *repository.SubscriptionRepository, secret string, expiryHours int) *AuthService {
	return &AuthService{
		db:            db,
		users:         users,
		plans:         plans,
		subscriptions: subscriptions,
		jwtSecret:     []byte(secret),
		jwtExpiry:     time.Duration(expiryHours) * time.Hour,
	}
}

// Creates a user account subscribed to the requested plan. The user row
// and its forced-active subscription are written in one transaction.
func (s *AuthService) Register(ctx context.Context, email, password string, planID uuid.UUID) (*models.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountExists
	}

	planExists, err := s.plans.ExistsByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !planExists {
		return nil, ErrInvalidPlan
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}

		_, err := s.subscriptions.WithTx(tx).Create(ctx, user.ID, planID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticates a user and returns a signed bearer token
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// Validates a bearer token and returns the authenticated user's id
func (s *AuthService) ValidateToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return uuid.Nil, err
	}

	if !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid token claims")
	}

	rawUserID, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, errors.New("token missing user_id claim")
	}

	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed user_id claim: %w", err)
	}

	return userID, nil
}
