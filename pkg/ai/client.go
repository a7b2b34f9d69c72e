package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lessonforge/internal/util"
	"lessonforge/pkg/domain"
)

const (
	// DefaultTokenBudget caps total tokens a single request may consume.
	DefaultTokenBudget = 2000
	// DefaultCallTimeout bounds one provider call.
	DefaultCallTimeout = 15 * time.Second
	// DefaultRetryLimit allows one retry per classified transport failure.
	DefaultRetryLimit = 1
	// DefaultBackoff is waited before retrying an upstream failure.
	DefaultBackoff = 2 * time.Second
)

// Call is one budgeted provider invocation. Validate, when set, rejects an
// unusable payload; a rejection counts as an upstream failure and is retried
// within the same bounds as a provider error.
type Call struct {
	Stage             string
	System            string
	User              string
	MaxResponseTokens int
	Temperature       float32
	Validate          func(text string) error
}

// ClientConfig wires a Client.
type ClientConfig struct {
	Completer  ChatCompleter
	Estimator  Estimator
	Timeout    time.Duration
	RetryLimit int
	Backoff    time.Duration
	Metrics    *Metrics
}

// Client drives bounded, budgeted, retried calls against a ChatCompleter.
// The budget is enforced before every dispatch, including retries, so the
// hard stop holds even if the provider mis-reports usage.
type Client struct {
	completer  ChatCompleter
	estimator  Estimator
	timeout    time.Duration
	retryLimit int
	backoff    time.Duration
	metrics    *Metrics
}

// NewClient constructs a Client, filling defaults for unset bounds.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Completer == nil {
		return nil, errors.New("ai client requires a completer")
	}
	estimator := cfg.Estimator
	if estimator == nil {
		estimator = HeuristicEstimator{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	retryLimit := cfg.RetryLimit
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Client{
		completer:  cfg.Completer,
		estimator:  estimator,
		timeout:    timeout,
		retryLimit: retryLimit,
		backoff:    backoff,
		metrics:    cfg.Metrics,
	}, nil
}

// Do issues the call within its budget, timeout, and retry bounds.
// Classified failures surface as domain.ErrBudgetExceeded (fail-fast, never
// dispatched), domain.ErrGenerationTimeout, or domain.ErrGenerationFailed.
// A cancelled parent context returns its error unwrapped: the caller
// abandoned the request, which is not a provider failure.
func (c *Client) Do(ctx context.Context, ledger *Ledger, call Call) (Completion, error) {
	logger := util.LoggerFromContext(ctx).With("stage", call.Stage)
	promptEstimate := c.estimator.Estimate(call.System) + c.estimator.Estimate(call.User)
	cost := promptEstimate + call.MaxResponseTokens
	c.metrics.observeTokens(call.Stage, "prompt_estimate", promptEstimate)

	timedOut := false
	var lastErr error
	for attempt := 0; attempt <= c.retryLimit; attempt++ {
		if err := ledger.Reserve(cost); err != nil {
			logger.Warn("generation call refused", "reason", "budget",
				"spent", ledger.Spent(), "cost", cost, "limit", ledger.Limit())
			c.metrics.observeCall(call.Stage, outcomeBudget, 0)
			return Completion{}, err
		}
		if attempt > 0 && !timedOut {
			// Upstream failures back off before the retry; timeouts have
			// already waited a full deadline.
			select {
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		completion, err := c.completer.Complete(callCtx, CompletionRequest{
			System:      call.System,
			User:        call.User,
			MaxTokens:   call.MaxResponseTokens,
			Temperature: call.Temperature,
		})
		cancel()
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return Completion{}, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				timedOut = true
				lastErr = err
				logger.Warn("generation call timed out", "attempt", attempt+1, "elapsed_ms", elapsed.Milliseconds())
				c.metrics.observeCall(call.Stage, outcomeTimeout, elapsed.Seconds())
				continue
			}
			timedOut = false
			lastErr = err
			logger.Warn("generation call failed", "attempt", attempt+1, "err", err)
			c.metrics.observeCall(call.Stage, outcomeUpstream, elapsed.Seconds())
			continue
		}

		consumed := completion.TokensConsumed
		if consumed <= 0 {
			consumed = promptEstimate + c.estimator.Estimate(completion.Text)
		}
		ledger.Spend(consumed)
		c.metrics.observeTokens(call.Stage, "consumed", consumed)

		if verr := validateCompletion(completion, call.Validate); verr != nil {
			timedOut = false
			lastErr = verr
			logger.Warn("generation payload rejected", "attempt", attempt+1, "err", verr)
			c.metrics.observeCall(call.Stage, outcomeUpstream, elapsed.Seconds())
			continue
		}

		logger.Info("generation call completed",
			"tokens", consumed, "finish_reason", completion.FinishReason,
			"elapsed_ms", elapsed.Milliseconds())
		c.metrics.observeCall(call.Stage, outcomeSuccess, elapsed.Seconds())
		return completion, nil
	}

	if timedOut {
		return Completion{}, fmt.Errorf("%w: %s call exceeded %s after %d attempts",
			domain.ErrGenerationTimeout, call.Stage, c.timeout, c.retryLimit+1)
	}
	return Completion{}, fmt.Errorf("%w: %s call: %v", domain.ErrGenerationFailed, call.Stage, lastErr)
}

func validateCompletion(completion Completion, validate func(string) error) error {
	if strings.TrimSpace(completion.Text) == "" {
		return errors.New("empty response text")
	}
	if validate != nil {
		return validate(completion.Text)
	}
	return nil
}
