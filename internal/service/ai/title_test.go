package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "Quarterly Revenue Report", want: "Quarterly Revenue Report"},
		{name: "collapses whitespace", raw: "  Quarterly \n\t Revenue   Report  ", want: "Quarterly Revenue Report"},
		{name: "cuts at first period", raw: "Revenue grew. Costs fell. Profit rose.", want: "Revenue grew"},
		{name: "strips quotes", raw: `"Fiscal Year 2024 Summary."`, want: "Fiscal Year 2024 Summary"},
		{name: "leading period", raw: ".hidden", want: ""},
		{name: "whitespace only", raw: " \n ", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanTitle(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.NotContains(t, got, ".")
			assert.NotContains(t, got, "  ")
		})
	}
}

func TestExcerptCountsCharacters(t *testing.T) {
	assert.Equal(t, "abc", Excerpt("abc", 10))
	assert.Equal(t, "ab", Excerpt("abc", 2))
	assert.Equal(t, "éé", Excerpt("ééé", 2))
	assert.Len(t, []rune(Excerpt(strings.Repeat("x", 5000), 1024)), 1024)
}

func TestGenerateIsDeterministicAndBounded(t *testing.T) {
	fake := &fakeChatModel{reply: "  Quarterly   Revenue Growth. Extra sentence."}
	gen := NewTitleGenerator(TitleOptions{MaxInputChars: 1024, MinTokens: 5, MaxTokens: 30}, nil)

	text := strings.Repeat("Quarterly Revenue Growth Report for Fiscal Year 2024 ", 100)
	res := gen.Generate(context.Background(), fake, text)
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "Quarterly Revenue Growth", res.Title)

	require.Len(t, fake.lastMsgs, 2)
	assert.Equal(t, schema.System, fake.lastMsgs[0].Role)
	assert.Len(t, []rune(fake.lastMsgs[1].Content), 1024)
	require.NotNil(t, fake.lastOpts.Temperature)
	assert.Equal(t, float32(0), *fake.lastOpts.Temperature)
	require.NotNil(t, fake.lastOpts.MaxTokens)
	assert.Equal(t, 30, *fake.lastOpts.MaxTokens)
}

func TestGenerateFailuresAreValues(t *testing.T) {
	gen := NewTitleGenerator(TitleOptions{}, nil)
	ctx := context.Background()

	res := gen.Generate(ctx, &fakeChatModel{err: errors.New("backend down")}, "some text")
	require.False(t, res.OK())
	assert.Contains(t, res.Err.Error(), "backend down")

	res = gen.Generate(ctx, &fakeChatModel{reply: ". . ."}, "some text")
	require.ErrorIs(t, res.Err, ErrNoTitle)

	res = gen.Generate(ctx, &fakeChatModel{reply: "x"}, "   ")
	require.ErrorIs(t, res.Err, ErrNoTitle)

	res = gen.Generate(ctx, nil, "some text")
	require.Error(t, res.Err)
}

func TestGenerateRecoversFromPanics(t *testing.T) {
	gen := NewTitleGenerator(TitleOptions{}, nil)
	var res TitleResult
	assert.NotPanics(t, func() {
		res = gen.Generate(context.Background(), panickyChatModel{}, "some text")
	})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "inference backend crashed")
}

func TestGenerateUsesCache(t *testing.T) {
	cache := newMapCache()
	fake := &fakeChatModel{reply: "Board Minutes"}
	gen := NewTitleGenerator(TitleOptions{Identity: "fake/v1"}, cache)
	ctx := context.Background()

	first := gen.Generate(ctx, fake, "minutes of the board meeting")
	require.True(t, first.OK())
	assert.False(t, first.Cached)

	second := gen.Generate(ctx, fake, "minutes of the board meeting")
	require.True(t, second.OK())
	assert.True(t, second.Cached)
	assert.Equal(t, "Board Minutes", second.Title)
	assert.Equal(t, int32(1), fake.calls.Load())

	gen.SetIdentity("fake/v2")
	third := gen.Generate(ctx, fake, "minutes of the board meeting")
	require.True(t, third.OK())
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestGenerateSafeForConcurrentUse(t *testing.T) {
	fake := &fakeChatModel{reply: "Shared Title"}
	gen := NewTitleGenerator(TitleOptions{}, newMapCache())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := gen.Generate(context.Background(), fake, "identical first page")
			assert.Equal(t, "Shared Title", res.Title)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, fake.calls.Load(), int32(8))
}

func TestGenerateHonoursRateLimitCancellation(t *testing.T) {
	gen := NewTitleGenerator(TitleOptions{RatePerMinute: 1}, nil)
	fake := &fakeChatModel{reply: "First"}
	require.True(t, gen.Generate(context.Background(), fake, "first document").OK())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := gen.Generate(ctx, fake, "second document")
	require.Error(t, res.Err)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestGenerateCancelledCallerDoesNotFailSharedRequest(t *testing.T) {
	blocking := newBlockingChatModel("Shared Report")
	gen := NewTitleGenerator(TitleOptions{}, nil)
	text := "identical first page uploaded by two visitors"

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan TitleResult, 1)
	go func() { resA <- gen.Generate(ctxA, blocking, text) }()
	<-blocking.started

	resB := make(chan TitleResult, 1)
	go func() { resB <- gen.Generate(context.Background(), blocking, text) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	first := <-resA
	require.ErrorIs(t, first.Err, context.Canceled)

	close(blocking.release)
	select {
	case second := <-resB:
		require.True(t, second.OK(), "unexpected failure: %v", second.Err)
		assert.Equal(t, "Shared Report", second.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller never returned")
	}
}
