package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"supplier-pricing/internal/types"
	"supplier-pricing/utils"
)

const notApplicablePayload = "not-applicable"

// StepFunc performs one attempt of a step and returns its payload
type StepFunc func(ctx context.Context) (string, error)

// RetryOption configures a RetryController
type RetryOption func(*RetryController)

// WithArtifactSink sends failure artifacts to sink
func WithArtifactSink(sink types.ArtifactSink) RetryOption {
	return func(r *RetryController) { r.sink = sink }
}

// WithStepTimeout bounds each attempt
func WithStepTimeout(d time.Duration) RetryOption {
	return func(r *RetryController) {
		if d > 0 {
			r.stepTimeout = d
		}
	}
}

// WithRetryLogger sets the logger
func WithRetryLogger(logger types.Logger) RetryOption {
	return func(r *RetryController) { r.logger = logger }
}

// RetryController runs steps with exponential backoff and jitter.
// Only Transient outcomes are retried; when the attempts run out a failure
// artifact is captured and the outcome becomes Fatal.
type RetryController struct {
	policy      types.RetryPolicy
	classifier  types.Classifier
	sink        types.ArtifactSink
	logger      types.Logger
	stepTimeout time.Duration
	rand        func() float64
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryController creates a controller using classifier to label errors
func NewRetryController(policy types.RetryPolicy, classifier types.Classifier, opts ...RetryOption) *RetryController {
	if classifier == nil {
		classifier = types.ClassifierFunc(types.Classify)
	}
	r := &RetryController{
		policy:      policy,
		classifier:  classifier,
		stepTimeout: 30 * time.Second,
		rand:        rand.Float64,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = discardLogger()
	}
	return r
}

// Attempt runs fn until it succeeds, fails fatally or exhausts the policy.
// Every attempt is appended to the run trace. Each attempt runs detached from
// ctx cancellation so an in-flight page action finishes; ctx is honored
// between attempts.
func (r *RetryController) Attempt(ctx context.Context, run *Run, step types.Step, fn StepFunc) types.StepOutcome {
	maxAttempts := r.policy.Attempts()

	for attempt := 1; ; attempt++ {
		started := time.Now()
		stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.stepTimeout)
		payload, err := fn(stepCtx)
		cancel()

		out := types.StepOutcome{
			Step:      step,
			Attempt:   attempt,
			StartedAt: started,
			Duration:  time.Since(started),
		}

		switch {
		case err == nil:
			out.Status = types.StatusSuccess
			out.Payload = payload
		case errors.Is(err, types.ErrNotApplicable):
			out.Status = types.StatusSuccess
			out.Payload = notApplicablePayload
		default:
			out.Status = r.classifier.Classify(err)
			out.Reason = err.Error()
			out.ErrorType = types.TypeOf(err)
		}

		if out.Status != types.StatusTransient {
			if out.Status == types.StatusFatal && out.ErrorType == "" {
				out.ErrorType = types.ErrorTypeUnknown
			}
			run.record(out)
			return out
		}

		if attempt >= maxAttempts {
			exhausted := &types.TransientUIError{Step: step, Attempts: attempt, Err: err}
			out.Status = types.StatusFatal
			out.Reason = exhausted.Error()
			out.ErrorType = types.ErrorTypeTransientUI
			out.ArtifactRef = r.capture(ctx, run, out)
			r.logger.Warnf("[%s] %s: %v", run.Supplier, run.Fingerprint.Short(), exhausted)
			run.record(out)
			return out
		}

		run.record(out)
		delay := r.policy.Backoff(attempt, r.rand())
		r.logger.Debugf("[%s] %s: %s attempt %d failed, retrying in %v: %v",
			run.Supplier, run.Fingerprint.Short(), step, attempt, delay, err)

		if err := r.sleep(ctx, delay); err != nil {
			cancelled := types.StepOutcome{
				Step:      step,
				Status:    types.StatusFatal,
				Attempt:   attempt,
				Reason:    fmt.Sprintf("cancelled while waiting to retry: %v", err),
				ErrorType: types.ErrorTypeCancelled,
				StartedAt: time.Now(),
			}
			run.record(cancelled)
			return cancelled
		}
	}
}

// capture snapshots the page and emits the artifact. It returns the artifact
// key, or "" when nothing could be emitted.
func (r *RetryController) capture(ctx context.Context, run *Run, out types.StepOutcome) string {
	if r.sink == nil || run.Driver == nil {
		return ""
	}
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.stepTimeout)
	defer cancel()

	artifact := types.Artifact{
		Key:         ArtifactKey(run.Fingerprint, out.Step, out.Attempt),
		Fingerprint: run.Fingerprint,
		Supplier:    run.Supplier,
		Step:        out.Step,
		Attempt:     out.Attempt,
		Trace:       append(run.Trace(), out),
		CapturedAt:  time.Now(),
	}

	if shot, err := run.Driver.Screenshot(captureCtx); err != nil {
		r.logger.Warnf("[%s] screenshot failed: %v", run.Supplier, err)
	} else {
		artifact.Screenshot = shot
	}
	if html, err := run.Driver.HTML(captureCtx); err != nil {
		r.logger.Warnf("[%s] DOM snapshot failed: %v", run.Supplier, err)
	} else {
		artifact.DOM = html
		if summary, err := utils.SummarizeDOM(html); err == nil {
			artifact.Title = summary.Title
			artifact.Alerts = summary.Alerts
		}
	}
	if url, err := run.Driver.CurrentURL(captureCtx); err == nil {
		artifact.URL = url
	}

	if err := r.sink.Emit(captureCtx, artifact); err != nil {
		r.logger.Errorf("[%s] failed to emit artifact %s: %v", run.Supplier, artifact.Key, err)
		return ""
	}
	run.Artifacts = append(run.Artifacts, artifact.Key)
	return artifact.Key
}

// ArtifactKey names the artifact of one failed attempt
func ArtifactKey(fp types.Fingerprint, step types.Step, attempt int) string {
	return fmt.Sprintf("%s/%s-attempt-%d", fp, step, attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func discardLogger() types.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
