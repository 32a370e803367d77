// Package advice talks to the generative language service that categorizes
// expenses and writes savings, investment and chat answers.
package advice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"finwise/internal/cache"
	"finwise/internal/core"
)

// ErrorPrefix starts the display form of a failed Result.
const ErrorPrefix = "Error: "

// MaxCategoryLength bounds a category label, in runes.
const MaxCategoryLength = 32

var (
	ErrExternalService = errors.New("advice service unavailable")
	ErrEmptyResponse   = errors.New("empty response")
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrUnknownRisk     = errors.New("unknown risk profile")
)

// Generator is the external text generation function.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, maxOutputTokens int) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	return f(ctx, prompt, maxOutputTokens)
}

// Result is the outcome of a single advice request. Exactly one of Text and
// Err is meaningful.
type Result struct {
	Text string
	Err  error
}

func (r Result) OK() bool { return r.Err == nil }

// Display renders the result for the UI. Failures read "Error: <message>".
func (r Result) Display() string {
	if r.Err != nil {
		return ErrorPrefix + r.Err.Error()
	}
	return r.Text
}

// Config tunes the gateway.
type Config struct {
	MaxOutputTokens int
	// Timeout bounds each attempt.
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the wait before the first retry; it doubles up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// CategoryCacheSize of 0 disables caching of categorization results.
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxOutputTokens:   400,
		Timeout:           30 * time.Second,
		MaxRetries:        2,
		BaseBackoff:       500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		CategoryCacheSize: 500,
		CategoryCacheTTL:  24 * time.Hour,
	}
}

// Gateway wraps a Generator so callers always get a Result and never a
// panic or a bare error.
type Gateway struct {
	gen        Generator
	cfg        Config
	categories *cache.LRUCache[string]
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewGateway(gen Generator, cfg Config) *Gateway {
	g := &Gateway{gen: gen, cfg: cfg, sleep: sleepCtx}
	if cfg.CategoryCacheSize > 0 {
		g.categories = cache.NewLRUCache[string](cfg.CategoryCacheSize, cfg.CategoryCacheTTL)
	}
	return g
}

// CategoryCache exposes the categorization cache for cleanup registration.
// It is nil when caching is disabled.
func (g *Gateway) CategoryCache() cache.Cleaner {
	if g.categories == nil {
		return nil
	}
	return g.categories
}

// GetAdvice sends prompt verbatim and returns the reply text.
func (g *Gateway) GetAdvice(ctx context.Context, prompt string) Result {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, g.backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}

		text, err := g.generate(ctx, prompt)
		if err == nil {
			slog.DebugContext(ctx, "Advice generated",
				"attempts", attempt+1,
				"duration", time.Since(start),
				"chars", utf8.RuneCountInString(text))
			return Result{Text: text}
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
		slog.WarnContext(ctx, "Advice request failed, retrying", "attempt", attempt+1, "error", err)
	}

	slog.ErrorContext(ctx, "Advice request failed", "error", lastErr, "duration", time.Since(start))
	return Result{Err: fmt.Errorf("%w: %w", ErrExternalService, lastErr)}
}

func (g *Gateway) generate(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	text, err = g.gen.Generate(ctx, prompt, g.cfg.MaxOutputTokens)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// backoff returns the wait before retry n (0-based).
func (g *Gateway) backoff(n int) time.Duration {
	d := g.cfg.BaseBackoff
	for i := 0; i < n; i++ {
		d *= 2
		if g.cfg.MaxBackoff > 0 && d >= g.cfg.MaxBackoff {
			return g.cfg.MaxBackoff
		}
	}
	return d
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Categorize returns a one-word category for description, or
// core.DefaultCategory when the service fails or replies with nothing usable.
func (g *Gateway) Categorize(ctx context.Context, description string) string {
	key := strings.ToLower(strings.Join(strings.Fields(description), " "))
	if g.categories != nil && key != "" {
		if c, ok := g.categories.Get(key); ok {
			return c
		}
	}

	res := g.GetAdvice(ctx, CategoryPrompt(description))
	if !res.OK() {
		slog.WarnContext(ctx, "Categorization failed, using default", "error", res.Err, "category", core.DefaultCategory)
		return core.DefaultCategory
	}

	category := ExtractCategory(res.Text)
	if g.categories != nil && key != "" && category != core.DefaultCategory {
		g.categories.Set(key, category)
	}
	return category
}

// ExtractCategory reduces a model reply to a category label: the first
// word, without surrounding punctuation or markdown.
func ExtractCategory(reply string) string {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return core.DefaultCategory
	}
	word := strings.TrimFunc(fields[0], func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if word == "" {
		return core.DefaultCategory
	}
	if utf8.RuneCountInString(word) > MaxCategoryLength {
		word = string([]rune(word)[:MaxCategoryLength])
	}
	return word
}
