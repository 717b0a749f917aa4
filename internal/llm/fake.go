package llm

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted Client. Each call consumes the next reply in order; replies go
// through the same sanitising and schema validation as real providers. It is safe
// for concurrent use.
type Fake struct {
	mu      sync.Mutex
	replies []FakeReply
	calls   []Request
}

// FakeReply is one scripted model answer. A non-nil Err is returned as a request
// failure.
type FakeReply struct {
	Text string
	Err  error
}

// NewFake returns a Fake that answers with texts in order.
func NewFake(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.replies = append(f.replies, FakeReply{Text: t})
	}
	return f
}

// Push appends scripted replies.
func (f *Fake) Push(replies ...FakeReply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
	return f
}

// GenerateJSON implements Client.
func (f *Fake) GenerateJSON(ctx context.Context, req Request) ([]byte, error) {
	const op = "GenerateJSON"

	f.mu.Lock()
	f.calls = append(f.calls, req)
	if len(f.replies) == 0 {
		f.mu.Unlock()
		return nil, &ModelError{Op: op, Provider: "fake", Err: ErrRequestFailed, Details: "no scripted reply left"}
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &ModelError{Op: op, Provider: "fake", Err: ErrRequestFailed, Details: err.Error()}
	}
	if reply.Err != nil {
		return nil, &ModelError{Op: op, Provider: "fake", Err: ErrRequestFailed, Details: reply.Err.Error()}
	}
	out, err := finish(op, "fake", reply.Text, req.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return out, nil
}

// Calls returns the requests received so far.
func (f *Fake) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}
