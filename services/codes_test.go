package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerateCodeFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode failed: %v", err)
		}
		if len(code) != codeLetterCount+codeDigitCount {
			t.Fatalf("expected code of length %d, got %q", codeLetterCount+codeDigitCount, code)
		}

		letters, digits := 0, 0
		for _, c := range code {
			switch {
			case strings.ContainsRune(codeLetters, c):
				letters++
			case strings.ContainsRune(codeDigits, c):
				digits++
			default:
				t.Fatalf("unexpected character %q in code %q", c, code)
			}
		}
		if letters != codeLetterCount || digits != codeDigitCount {
			t.Fatalf("expected %d letters and %d digits, got %d/%d in %q",
				codeLetterCount, codeDigitCount, letters, digits, code)
		}
	}
}

func TestGenerateUniqueCodeRetriesUntilFree(t *testing.T) {
	calls := 0
	exists := func(_ context.Context, code string) (bool, error) {
		calls++
		// Первые три кандидата "заняты".
		return calls <= 3, nil
	}

	code, err := generateUniqueCode(context.Background(), exists)
	if err != nil {
		t.Fatalf("generateUniqueCode failed: %v", err)
	}
	if code == "" {
		t.Fatal("expected non-empty code")
	}
	if calls != 4 {
		t.Fatalf("expected 4 existence checks, got %d", calls)
	}
}

func TestGenerateUniqueCodePropagatesLookupError(t *testing.T) {
	lookupErr := errors.New("connection lost")
	exists := func(_ context.Context, _ string) (bool, error) {
		return false, lookupErr
	}

	_, err := generateUniqueCode(context.Background(), exists)
	if !errors.Is(err, ErrCodeGeneration) {
		t.Fatalf("expected ErrCodeGeneration, got %v", err)
	}
	if !errors.Is(err, lookupErr) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}

func TestGenerateUniqueCodeStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exists := func(_ context.Context, _ string) (bool, error) {
		// Все коды заняты: без отмены цикл не завершился бы.
		return true, nil
	}
	_, err := generateUniqueCode(ctx, exists)
	if !errors.Is(err, ErrCodeGeneration) {
		t.Fatalf("expected ErrCodeGeneration, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
