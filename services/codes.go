package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Коды токенов и коды присоединения к событию строятся одинаково:
// codeLetterCount заглавных букв и codeDigitCount цифр, перемешанных между
// собой. Итоговая длина — 8 символов.
const (
	codeLetterCount = 4
	codeDigitCount  = 4

	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeDigits  = "0123456789"
)

var ErrCodeGeneration = errors.New("failed to generate unique code")

func randomIndex(n int) (int, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(idx.Int64()), nil
}

// generateCode собирает код: буквы и цифры выбираются раздельно,
// конкатенируются и перемешиваются.
func generateCode() (string, error) {
	chars := make([]byte, 0, codeLetterCount+codeDigitCount)
	for i := 0; i < codeLetterCount; i++ {
		idx, err := randomIndex(len(codeLetters))
		if err != nil {
			return "", err
		}
		chars = append(chars, codeLetters[idx])
	}
	for i := 0; i < codeDigitCount; i++ {
		idx, err := randomIndex(len(codeDigits))
		if err != nil {
			return "", err
		}
		chars = append(chars, codeDigits[idx])
	}

	// Перемешивание Фишера-Йетса на криптографическом источнике.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars), nil
}

// generateUniqueCode генерирует коды до тех пор, пока не найдет свободный.
// Цикл без ограничения попыток: пока пространство кодов не исчерпано,
// завершение гарантировано.
func generateUniqueCode(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrCodeGeneration, err)
		}
		code, err := generateCode()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCodeGeneration, err)
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCodeGeneration, err)
		}
		if !taken {
			return code, nil
		}
	}
}
