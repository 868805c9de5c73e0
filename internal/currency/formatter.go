package currency

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/gunta/skypilot/internal/store"
)

// Formatter converts USD amounts at a fixed rate and renders them with the
// currency's symbol and standard number of decimals.
type Formatter struct {
	code    string
	rate    float64
	symbol  string
	scale   int
	printer *message.Printer
}

// NewFormatter fails when code is not a recognised ISO 4217 currency.
func NewFormatter(code string, rate float64, tag language.Tag) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("unsupported currency %q: %w", code, err)
	}
	p := message.NewPrinter(tag)
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{
		code:    unit.String(),
		rate:    rate,
		symbol:  p.Sprint(currency.Symbol(unit)),
		scale:   scale,
		printer: p,
	}, nil
}

// Identity is a rate 1 formatter for code, which must be valid.
func Identity(code string, tag language.Tag) *Formatter {
	f, err := NewFormatter(code, 1, tag)
	if err != nil {
		f, _ = NewFormatter("USD", 1, tag)
	}
	return f
}

func (f *Formatter) Currency() string { return f.code }

func (f *Formatter) Rate() float64 { return f.rate }

func (f *Formatter) Convert(amountUSD float64) float64 { return amountUSD * f.rate }

func (f *Formatter) Format(amountUSD float64) string {
	amount := f.printer.Sprint(number.Decimal(f.Convert(amountUSD), number.Scale(f.scale)))
	if r, _ := utf8.DecodeLastRuneInString(f.symbol); unicode.IsLetter(r) {
		return f.symbol + " " + amount
	}
	return f.symbol + amount
}

// Resolution is the outcome of resolving the preferred formatter. Warning
// explains why Formatter fell back to the default currency.
type Resolution struct {
	Formatter *Formatter
	Warning   error
}

// Service builds formatters from the preferred currency and cached rates.
type Service struct {
	cache    *Cache
	settings *store.Settings
	base     string
}

func NewService(cache *Cache, settings *store.Settings, base string) *Service {
	if base == "" {
		base = "USD"
	}
	return &Service{cache: cache, settings: settings, base: strings.ToUpper(base)}
}

func (s *Service) Base() string { return s.base }

// Cache exposes the underlying rate cache.
func (s *Service) Cache() *Cache { return s.cache }

func (s *Service) tag(ctx context.Context) language.Tag {
	lang, err := s.settings.Language(ctx)
	if err != nil {
		return language.English
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	return tag
}

// USD renders amounts in the base currency.
func (s *Service) USD(ctx context.Context) *Formatter {
	return Identity(s.base, s.tag(ctx))
}

// Resolve never fails: any currency problem yields the default currency at
// rate 1 together with a warning.
func (s *Service) Resolve(ctx context.Context) Resolution {
	tag := s.tag(ctx)
	fallback := Identity(s.settings.DefaultCurrency(), tag)

	preferred, err := s.settings.Currency(ctx)
	if err != nil {
		return Resolution{Formatter: fallback, Warning: fmt.Errorf("read preferred currency: %w", err)}
	}
	preferred = strings.ToUpper(preferred)
	if preferred == s.base {
		return Resolution{Formatter: Identity(s.base, tag)}
	}

	rates, err := s.cache.Rates(ctx, s.base)
	if err != nil {
		return Resolution{Formatter: fallback, Warning: fmt.Errorf("load exchange rates: %w", err)}
	}
	rate, ok := rates.Rates[preferred]
	if !ok {
		return Resolution{Formatter: fallback, Warning: fmt.Errorf("no %s rate for %s", s.base, preferred)}
	}
	f, err := NewFormatter(preferred, rate, tag)
	if err != nil {
		return Resolution{Formatter: fallback, Warning: err}
	}
	return Resolution{Formatter: f}
}
