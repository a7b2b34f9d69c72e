package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lessonforge/pkg/domain"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req CompletionRequest) (Completion, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestClient(t *testing.T, completer ChatCompleter, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Completer: completer,
		Estimator: HeuristicEstimator{},
		Timeout:   timeout,
		Backoff:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientDoSuccessSpendsReportedUsage(t *testing.T) {
	fake := &fakeCompleter{fn: func(_ context.Context, _ CompletionRequest) (Completion, error) {
		return Completion{Text: "bonjour", TokensConsumed: 42, FinishReason: "stop"}, nil
	}}
	client := newTestClient(t, fake, time.Second)
	ledger := NewLedger(2000)

	completion, err := client.Do(context.Background(), ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if completion.Text != "bonjour" {
		t.Fatalf("text = %q, want %q", completion.Text, "bonjour")
	}
	if got := ledger.Spent(); got != 42 {
		t.Fatalf("spent = %d, want reported 42", got)
	}
	if fake.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", fake.callCount())
	}
}

func TestClientDoEstimatesUnreportedUsage(t *testing.T) {
	fake := &fakeCompleter{fn: func(_ context.Context, _ CompletionRequest) (Completion, error) {
		return Completion{Text: "bonjour tout le monde et bienvenue"}, nil
	}}
	client := newTestClient(t, fake, time.Second)
	ledger := NewLedger(2000)

	if _, err := client.Do(context.Background(), ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if ledger.Spent() == 0 {
		t.Fatalf("spent = 0, want estimated usage recorded")
	}
}

func TestClientDoBudgetRefusalNeverDispatches(t *testing.T) {
	fake := &fakeCompleter{fn: func(_ context.Context, _ CompletionRequest) (Completion, error) {
		return Completion{Text: "x"}, nil
	}}
	client := newTestClient(t, fake, time.Second)
	ledger := NewLedger(50)

	_, err := client.Do(context.Background(), ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100})
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("do = %v, want ErrBudgetExceeded", err)
	}
	if fake.callCount() != 0 {
		t.Fatalf("calls = %d, want 0 (refused call must not dispatch)", fake.callCount())
	}
}

func TestClientDoTimeoutRetriedOnceThenSurfaced(t *testing.T) {
	fake := &fakeCompleter{fn: func(ctx context.Context, _ CompletionRequest) (Completion, error) {
		<-ctx.Done()
		return Completion{}, ctx.Err()
	}}
	client := newTestClient(t, fake, 20*time.Millisecond)
	ledger := NewLedger(2000)

	start := time.Now()
	_, err := client.Do(context.Background(), ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100})
	if !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Fatalf("do = %v, want ErrGenerationTimeout", err)
	}
	if fake.callCount() != 2 {
		t.Fatalf("calls = %d, want 2 (one retry)", fake.callCount())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced, elapsed %s", elapsed)
	}
}

func TestClientDoTimeoutThenSuccess(t *testing.T) {
	fake := &fakeCompleter{}
	fake.fn = func(ctx context.Context, _ CompletionRequest) (Completion, error) {
		if fake.callCount() == 1 {
			<-ctx.Done()
			return Completion{}, ctx.Err()
		}
		return Completion{Text: "ok", TokensConsumed: 10}, nil
	}
	client := newTestClient(t, fake, 20*time.Millisecond)
	ledger := NewLedger(2000)

	completion, err := client.Do(context.Background(), ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if completion.Text != "ok" {
		t.Fatalf("text = %q, want %q", completion.Text, "ok")
	}
}

func TestClientDoUpstreamErrorRetriedOnceThenSurfaced(t *testing.T) {
	fake := &fakeCompleter{fn: func(_ context.Context, _ CompletionRequest) (Completion, error) {
		return Completion{}, errors.New("provider exploded")
	}}
	client := newTestClient(t, fake, time.Second)
	ledger := NewLedger(2000)

	_, err := client.Do(context.Background(), ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("do = %v, want ErrGenerationFailed", err)
	}
	if fake.callCount() != 2 {
		t.Fatalf("calls = %d, want 2 (one retry)", fake.callCount())
	}
}

func TestClientDoEmptyTextIsUpstreamFailure(t *testing.T) {
	fake := &fakeCompleter{fn: func(_ context.Context, _ CompletionRequest) (Completion, error) {
		return Completion{Text: "   ", TokensConsumed: 7}, nil
	}}
	client := newTestClient(t, fake, time.Second)
	ledger := NewLedger(2000)

	_, err := client.Do(context.Background(), ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("do = %v, want ErrGenerationFailed", err)
	}
	// Tokens billed for the unusable payload stay spent.
	if got := ledger.Spent(); got != 14 {
		t.Fatalf("spent = %d, want 14", got)
	}
}

func TestClientDoValidateRejectionRetried(t *testing.T) {
	fake := &fakeCompleter{}
	fake.fn = func(_ context.Context, _ CompletionRequest) (Completion, error) {
		if fake.callCount() == 1 {
			return Completion{Text: "not json", TokensConsumed: 5}, nil
		}
		return Completion{Text: `{"ok":true}`, TokensConsumed: 5}, nil
	}
	client := newTestClient(t, fake, time.Second)
	ledger := NewLedger(2000)

	completion, err := client.Do(context.Background(), ledger, Call{
		Stage:             "plan",
		User:              "hi",
		MaxResponseTokens: 100,
		Validate: func(text string) error {
			if text == "not json" {
				return errors.New("unparseable")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if completion.Text != `{"ok":true}` {
		t.Fatalf("text = %q, want valid payload from retry", completion.Text)
	}
	if fake.callCount() != 2 {
		t.Fatalf("calls = %d, want 2", fake.callCount())
	}
}

func TestClientDoParentCancellationNotRetried(t *testing.T) {
	fake := &fakeCompleter{fn: func(ctx context.Context, _ CompletionRequest) (Completion, error) {
		<-ctx.Done()
		return Completion{}, ctx.Err()
	}}
	client := newTestClient(t, fake, time.Second)
	ledger := NewLedger(2000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := client.Do(ctx, ledger, Call{Stage: "plan", User: "hi", MaxResponseTokens: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("do = %v, want context.Canceled", err)
	}
	if fake.callCount() != 1 {
		t.Fatalf("calls = %d, want 1 (caller abandonment is not retried)", fake.callCount())
	}
}
