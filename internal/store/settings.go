package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/currency"

	"github.com/gunta/skypilot/internal/locale"
)

const (
	KeyCurrency = "currency"
	KeyLanguage = "language"
)

// SupportedLanguages are the interface languages the CLI ships with.
var SupportedLanguages = []string{"en", "es", "fr", "de", "ja", "pt", "zh"}

const DefaultLanguage = "en"

// Settings reads and writes user preferences. On first read a missing
// preference is detected from the environment and persisted.
type Settings struct {
	kv              KV
	defaultCurrency string
	detect          func() locale.Detected
}

func NewSettings(kv KV, defaultCurrency string) *Settings {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Settings{kv: kv, defaultCurrency: strings.ToUpper(defaultCurrency), detect: locale.Detect}
}

// WithDetector replaces environment detection, mainly for tests.
func (s *Settings) WithDetector(fn func() locale.Detected) *Settings {
	s.detect = fn
	return s
}

func (s *Settings) DefaultCurrency() string { return s.defaultCurrency }

// Currency returns the preferred ISO 4217 code.
func (s *Settings) Currency(ctx context.Context) (string, error) {
	stored, ok, err := s.kv.Get(ctx, KeyCurrency)
	if err != nil {
		return "", err
	}
	if ok && stored != "" {
		return stored, nil
	}

	if detected := s.detect().Currency; detected != "" {
		if err := s.kv.Set(ctx, KeyCurrency, detected); err != nil {
			return "", err
		}
		return detected, nil
	}
	return s.defaultCurrency, nil
}

// SetCurrency validates and stores a currency code.
func (s *Settings) SetCurrency(ctx context.Context, code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", fmt.Errorf("currency code cannot be empty")
	}
	if _, err := currency.ParseISO(normalized); err != nil {
		return "", fmt.Errorf("unsupported currency %q", code)
	}
	if err := s.kv.Set(ctx, KeyCurrency, normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// NormalizeLanguage maps "pt-BR" or "DE" onto a supported language, or "".
func NormalizeLanguage(code string) string {
	cleaned := strings.ToLower(strings.TrimSpace(code))
	if cleaned == "" {
		return ""
	}
	short := strings.SplitN(strings.ReplaceAll(cleaned, "_", "-"), "-", 2)[0]
	for _, lang := range SupportedLanguages {
		if lang == cleaned || lang == short {
			return lang
		}
	}
	return ""
}

// Language returns the interface language.
func (s *Settings) Language(ctx context.Context) (string, error) {
	stored, ok, err := s.kv.Get(ctx, KeyLanguage)
	if err != nil {
		return "", err
	}
	if ok && stored != "" {
		if lang := NormalizeLanguage(stored); lang != "" {
			return lang, nil
		}
		return DefaultLanguage, nil
	}

	lang := NormalizeLanguage(s.detect().Locale)
	if lang == "" {
		lang = DefaultLanguage
	}
	if err := s.kv.Set(ctx, KeyLanguage, lang); err != nil {
		return "", err
	}
	return lang, nil
}

// SetLanguage stores a supported language.
func (s *Settings) SetLanguage(ctx context.Context, code string) (string, error) {
	lang := NormalizeLanguage(code)
	if lang == "" {
		return "", fmt.Errorf("unsupported language: %s", code)
	}
	if err := s.kv.Set(ctx, KeyLanguage, lang); err != nil {
		return "", err
	}
	return lang, nil
}
