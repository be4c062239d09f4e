package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"reconciler/internal/model"
	"reconciler/internal/storage"
)

var (
	ErrLoginTaken          = errors.New("login already exists")
	ErrInvalidCredentials  = errors.New("invalid login or password")
	ErrCredentialsRequired = errors.New("login and password required")
)

const tokenTTL = 24 * time.Hour

// OperatorStore is implemented by *storage.Gateway.
type OperatorStore interface {
	CreateOperator(ctx context.Context, op *model.Operator) error
	FindOperator(ctx context.Context, login string) (*model.Operator, error)
}

type AuthService struct {
	store  OperatorStore
	secret []byte
}

func NewAuthService(store OperatorStore, secret string) *AuthService {
	return &AuthService{store: store, secret: []byte(secret)}
}

func (s *AuthService) Register(ctx context.Context, login, password string) (*model.Operator, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	op := &model.Operator{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: hash,
		CreatedAt:    model.Now(),
	}
	if err := s.store.CreateOperator(ctx, op); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrLoginTaken
		}
		return nil, fmt.Errorf("insert operator: %w", err)
	}

	return op, nil
}

func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*model.Operator, error) {
	op, err := s.store.FindOperator(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(op.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return op, nil
}

// IssueToken signs an HS256 token carrying the operator id.
func (s *AuthService) IssueToken(op *model.Operator) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": op.ID,
		"exp":         jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
