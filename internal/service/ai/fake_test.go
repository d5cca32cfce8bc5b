package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	reply string
	err   error
	calls atomic.Int32

	mu       sync.Mutex
	lastMsgs []*schema.Message
	lastOpts *model.Options
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastMsgs = input
	f.lastOpts = model.GetCommonOptions(&model.Options{}, opts...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type panickyChatModel struct{}

func (panickyChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	panic("inference backend crashed")
}

func (panickyChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key, title string) {
	c.mu.Lock()
	c.data[key] = title
	c.mu.Unlock()
}

// blockingChatModel holds every call until release is closed, honouring
// cancellation of the context it was called with.
type blockingChatModel struct {
	reply   string
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newBlockingChatModel(reply string) *blockingChatModel {
	return &blockingChatModel{reply: reply, started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return &schema.Message{Role: schema.Assistant, Content: b.reply}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}
