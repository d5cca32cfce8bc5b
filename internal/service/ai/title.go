package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrNoTitle means the model produced nothing usable as a title.
var ErrNoTitle = errors.New("model returned no usable title")

const titleSystemPrompt = "You summarize the opening page of a document into a short title suitable as a file name. " +
	"Write between %d and %d words. Output only the title; no quotes, no explanation."

// TitleResult is the outcome of one title generation. Err is nil on success.
type TitleResult struct {
	Title  string
	Cached bool
	Err    error
}

// OK reports whether a title was produced.
func (r TitleResult) OK() bool {
	return r.Err == nil
}

// TitleOptions bound the model input and output.
type TitleOptions struct {
	MaxInputChars int
	MinTokens     int
	MaxTokens     int
	// Identity distinguishes cache entries produced by different models.
	Identity string
	// RatePerMinute caps inference calls process-wide; zero disables the cap.
	RatePerMinute int
}

// TitleGenerator turns first-page text into a short title.
type TitleGenerator struct {
	opts    TitleOptions
	cache   TitleCache
	limiter *rate.Limiter
	group   singleflight.Group

	mu       sync.RWMutex
	identity string
}

// NewTitleGenerator builds a generator. cache may be nil.
func NewTitleGenerator(opts TitleOptions, cache TitleCache) *TitleGenerator {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 1024
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 30
	}
	if opts.MinTokens <= 0 || opts.MinTokens > opts.MaxTokens {
		opts.MinTokens = 5
		if opts.MinTokens > opts.MaxTokens {
			opts.MinTokens = opts.MaxTokens
		}
	}
	g := &TitleGenerator{opts: opts, cache: cache, identity: opts.Identity}
	if opts.RatePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}
	return g
}

// SetIdentity records which model backs the generator so cached titles from
// another model are not reused.
func (g *TitleGenerator) SetIdentity(identity string) {
	g.mu.Lock()
	g.identity = identity
	g.mu.Unlock()
}

func (g *TitleGenerator) currentIdentity() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identity
}

// Generate asks chatModel for a title of text. Sampling is disabled so the
// same excerpt always maps to the same title.
func (g *TitleGenerator) Generate(ctx context.Context, chatModel model.BaseChatModel, text string) (res TitleResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = TitleResult{Err: fmt.Errorf("generate title: %v", rec)}
		}
	}()
	if chatModel == nil {
		return TitleResult{Err: errors.New("summarization model not loaded")}
	}
	excerpt := Excerpt(text, g.opts.MaxInputChars)
	if strings.TrimSpace(excerpt) == "" {
		return TitleResult{Err: ErrNoTitle}
	}

	key := cacheKey(g.currentIdentity(), excerpt)
	if g.cache != nil {
		if title, ok := g.cache.Get(ctx, key); ok && title != "" {
			return TitleResult{Title: title, Cached: true}
		}
	}

	if err := ctx.Err(); err != nil {
		return TitleResult{Err: fmt.Errorf("generate title: %w", err)}
	}
	// The flight is shared with other callers, so it must outlive this one.
	flightCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (v interface{}, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("generate title: %v", rec)
			}
		}()
		return g.infer(flightCtx, chatModel, excerpt)
	})
	var out singleflight.Result
	select {
	case <-ctx.Done():
		return TitleResult{Err: fmt.Errorf("generate title: %w", ctx.Err())}
	case out = <-ch:
	}
	if out.Err != nil {
		return TitleResult{Err: out.Err}
	}
	title := out.Val.(string)
	if g.cache != nil {
		g.cache.Set(ctx, key, title)
	}
	return TitleResult{Title: title}
}

func (g *TitleGenerator) infer(ctx context.Context, chatModel model.BaseChatModel, excerpt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for inference slot: %w", err)
		}
	}
	messages := []*schema.Message{
		{
			Role:    schema.System,
			Content: fmt.Sprintf(titleSystemPrompt, g.opts.MinTokens, g.opts.MaxTokens),
		},
		{
			Role:    schema.User,
			Content: excerpt,
		},
	}
	resp, err := chatModel.Generate(ctx, messages,
		model.WithTemperature(0),
		model.WithMaxTokens(g.opts.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate title failed: %w", err)
	}
	if resp == nil {
		return "", ErrNoTitle
	}
	title := CleanTitle(resp.Content)
	if title == "" {
		return "", ErrNoTitle
	}
	return title, nil
}

// Excerpt returns at most limit characters of text.
func Excerpt(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// CleanTitle collapses whitespace and keeps only the text before the first
// period. The result never holds consecutive spaces or a '.'.
func CleanTitle(raw string) string {
	title := strings.Trim(strings.TrimSpace(raw), "\"'`“”‘’")
	title = strings.Join(strings.Fields(title), " ")
	if idx := strings.IndexByte(title, '.'); idx >= 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}

func cacheKey(identity, excerpt string) string {
	sum := sha256.Sum256([]byte(identity + "\x00" + excerpt))
	return hex.EncodeToString(sum[:])
}
