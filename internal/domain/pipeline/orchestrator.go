package pipeline

import (
	"context"
	"fmt"
	"time"

	"ai-images-server-go/internal/domain/compress"
	"ai-images-server-go/internal/domain/describe"
	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/domain/publish"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/observability"
)

const defaultCompensateTimeout = 10 * time.Second

// Stages are the collaborators a run is built from.
type Stages struct {
	Validator  *image.Validator
	Compressor compress.Compressor
	Publisher  publish.Publisher
	Describer  describe.Describer
}

// Options bound the external calls of a run. Zero timeouts mean no bound
// beyond the caller's context.
type Options struct {
	CompressTimeout time.Duration
	PublishTimeout  time.Duration
	DescribeTimeout time.Duration
	// Compensate deletes the published object when a later stage fails.
	Compensate        bool
	CompensateTimeout time.Duration
}

// Orchestrator runs uploads through the fixed stage sequence. It keeps no
// per-run state, so one instance serves concurrent runs.
type Orchestrator struct {
	stages    Stages
	opts      Options
	observers []Observer
}

func New(stages Stages, opts Options, observers ...Observer) (*Orchestrator, error) {
	switch {
	case stages.Validator == nil:
		return nil, errors.New(errors.KindConfig, "pipeline.new", "validator is required")
	case stages.Compressor == nil:
		return nil, errors.New(errors.KindConfig, "pipeline.new", "compressor is required")
	case stages.Publisher == nil:
		return nil, errors.New(errors.KindConfig, "pipeline.new", "publisher is required")
	case stages.Describer == nil:
		return nil, errors.New(errors.KindConfig, "pipeline.new", "describer is required")
	}
	if opts.CompensateTimeout <= 0 {
		opts.CompensateTimeout = defaultCompensateTimeout
	}
	return &Orchestrator{stages: stages, opts: opts, observers: observers}, nil
}

// Observe adds observers notified for every run.
func (o *Orchestrator) Observe(observers ...Observer) {
	o.observers = append(o.observers, observers...)
}

type step struct {
	state   State
	kind    errors.Kind
	op      string
	message string
	timeout time.Duration
	run     func(ctx context.Context, rec Record) (Record, error)
}

func (o *Orchestrator) steps(payload image.Payload) []step {
	return []step{
		{
			state:   StateValidating,
			kind:    errors.KindValidation,
			op:      "pipeline.validate",
			message: "invalid upload",
			run: func(_ context.Context, rec Record) (Record, error) {
				req, err := o.stages.Validator.Validate(payload)
				if err != nil {
					return rec, err
				}
				rec.Request = req
				return rec, nil
			},
		},
		{
			state:   StateCompressing,
			kind:    errors.KindCompression,
			op:      "pipeline.compress",
			message: "compression failed",
			timeout: o.opts.CompressTimeout,
			run: func(ctx context.Context, rec Record) (Record, error) {
				res, err := o.stages.Compressor.Compress(ctx, rec.Request.Data, rec.Request.FileName, rec.Request.MimeType)
				if err != nil {
					return rec, err
				}
				rec.Compression = &res
				return rec, nil
			},
		},
		{
			state:   StatePublishing,
			kind:    errors.KindStorage,
			op:      "pipeline.publish",
			message: "storage unavailable",
			timeout: o.opts.PublishTimeout,
			run: func(ctx context.Context, rec Record) (Record, error) {
				res, err := o.stages.Publisher.Publish(ctx, rec.Compression.CompressedData, rec.Request.FileName, rec.Request.MimeType)
				if err != nil {
					return rec, err
				}
				rec.Publish = &res
				return rec, nil
			},
		},
		{
			state:   StateDescribing,
			kind:    errors.KindDescription,
			op:      "pipeline.describe",
			message: "description service unavailable",
			timeout: o.opts.DescribeTimeout,
			run: func(ctx context.Context, rec Record) (Record, error) {
				res, err := o.stages.Describer.Describe(ctx, rec.Compression.CompressedData, rec.Request.MimeType, rec.Request.Language)
				if err != nil {
					return rec, err
				}
				rec.Description = &res
				return rec, nil
			},
		},
	}
}

// Run executes one upload and returns exactly one terminal outcome. Extra
// observers see only this run.
func (o *Orchestrator) Run(ctx context.Context, traceID string, payload image.Payload, extra ...Observer) (out Outcome) {
	observers := make([]Observer, 0, len(o.observers)+len(extra))
	observers = append(observers, o.observers...)
	observers = append(observers, extra...)

	started := time.Now()
	rec := Record{TraceID: traceID}

	current := StateIdle
	entered := started

	moveTo := func(to State, err error) {
		now := time.Now()
		notify(ctx, observers, Transition{
			TraceID: traceID,
			From:    current,
			To:      to,
			Record:  rec,
			Err:     err,
			Elapsed: now.Sub(entered),
		})
		current = to
		entered = now
	}

	fail := func(err error) Outcome {
		failedStage := current
		moveTo(StateFailed, err)
		if failedStage == StateDescribing && rec.Publish != nil && o.opts.Compensate {
			o.compensate(ctx, observers, traceID, rec.Publish.Key)
		}
		return Outcome{
			TraceID:     traceID,
			State:       StateFailed,
			Err:         err,
			FailedStage: failedStage,
			Duration:    time.Since(started),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			if current.Terminal() {
				panic(r)
			}
			out = fail(errors.New(errors.KindPlatform, "pipeline.run", fmt.Sprintf("panic during %s: %v", current, r)))
		}
	}()

	for _, st := range o.steps(payload) {
		moveTo(st.state, nil)

		next, err := o.runStep(ctx, st, rec)
		if err != nil {
			return fail(errors.Wrap(st.kind, st.op, st.message, err))
		}
		rec = next
	}

	moveTo(StateCompleted, nil)
	return Outcome{
		TraceID:  traceID,
		State:    StateCompleted,
		Result:   rec.Result(),
		Duration: time.Since(started),
	}
}

func (o *Orchestrator) runStep(ctx context.Context, st step, rec Record) (Record, error) {
	stepCtx := ctx
	if st.timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}

	stepCtx, end := observability.StartSpan(stepCtx, "pipeline", string(st.state))
	next, err := st.run(stepCtx, rec)
	end(err)
	return next, err
}

// compensate deletes an orphaned object with a fresh context, since the run
// context may already be cancelled. Failures are reported, never returned.
func (o *Orchestrator) compensate(ctx context.Context, observers []Observer, traceID, key string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CompensateTimeout)
	defer cancel()

	err := o.stages.Publisher.Delete(delCtx, key)
	for _, obs := range observers {
		if c, ok := obs.(CompensationObserver); ok {
			c.OnCompensation(ctx, traceID, key, err)
		}
	}
}
