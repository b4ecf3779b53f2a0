package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
)

// TokenService управляет одноразовыми токенами создания событий.
// Потребление токена (used=true) выполняет EventService в транзакции
// создания события.
type TokenService interface {
	// Create создает токен. Если code пуст, генерирует уникальный код;
	// явный код также проверяется на коллизию.
	Create(ctx context.Context, code string) (*models.Token, error)

	GetByCode(ctx context.Context, code string) (*models.Token, error)
}

type tokenService struct {
	tokenRepo repositories.TokenRepository
}

func NewTokenService(tokenRepo repositories.TokenRepository) TokenService {
	return &tokenService{tokenRepo: tokenRepo}
}

func (s *tokenService) Create(ctx context.Context, code string) (*models.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		generated, err := generateUniqueCode(ctx, s.tokenRepo.CodeExists)
		if err != nil {
			return nil, err
		}
		code = generated
	}

	token := &models.Token{Code: code}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		if errors.Is(err, repositories.ErrTokenCodeConflict) {
			// Гонка при явном коде либо между генерацией и вставкой.
			return nil, fmt.Errorf("%w: code %q is taken", ErrValidationFailed, code)
		}
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}

func (s *tokenService) GetByCode(ctx context.Context, code string) (*models.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrTokenNotProvided
	}
	token, err := s.tokenRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token by code: %w", err)
	}
	return token, nil
}
