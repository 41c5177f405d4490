package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
)

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeAI scripts backend responses by purpose prefix and counts every call.
type fakeAI struct {
	mu        sync.Mutex
	calls     []string
	last      []AIMessage
	responses map[string]string
	errs      map[string]error
}

func newFakeAI() *fakeAI {
	return &fakeAI{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeAI) Chat(_ context.Context, messages []AIMessage, opts *AIOptions) (*AICompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	purpose := ""
	if opts != nil {
		purpose = opts.Purpose
	}
	f.calls = append(f.calls, purpose)
	f.last = messages
	for prefix, err := range f.errs {
		if strings.HasPrefix(purpose, prefix) {
			return nil, err
		}
	}
	for prefix, content := range f.responses {
		if strings.HasPrefix(purpose, prefix) {
			return &AICompletion{Content: content}, nil
		}
	}
	return nil, apperr.NewBackendError(apperr.BackendUnavailable, purpose, errors.New("no scripted response"))
}

func (f *fakeAI) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAI) lastMessages() []AIMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeAI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
