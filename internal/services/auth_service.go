package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"toko-pay/internal/models"
	"toko-pay/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed login, without telling whether the username exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService authenticates operators for the admin API.
type AuthService struct {
	operatorRepo repositories.OperatorRepository
	jwtSecret    []byte
	tokenTTL     time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(operatorRepo repositories.OperatorRepository, jwtSecret string) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     24 * time.Hour,
	}
}

// EnsureOperator creates the operator account unless the username already exists.
func (s *AuthService) EnsureOperator(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("operator username and password are required")
	}
	_, err := s.operatorRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrOperatorNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.operatorRepo.Create(ctx, &models.Operator{Username: username, PasswordHash: string(hash)}); err != nil {
		return fmt.Errorf("failed to create operator %s: %w", username, err)
	}
	log.Printf("Operator %s created", username)
	return nil
}

// Login authenticates an operator and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	operator, err := s.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrOperatorNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      operator.ID,
		"username": operator.Username,
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
