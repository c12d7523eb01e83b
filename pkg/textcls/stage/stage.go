// Package stage defines the five-phase lifecycle every pipeline step follows
// and the driver that sequences it.
//
// A stage is driven as Init → Read → Process → Write, stopping at the first
// phase that does not return Success. Cleanup runs exactly once afterwards,
// whatever happened before it.
package stage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stage is one step of the pipeline.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string
	// Init validates options and external resources.
	Init(ctx context.Context) Result
	// Read loads persisted input into memory.
	Read(ctx context.Context) Result
	// Process is the stage-specific operation (transform, split, train, report).
	Process(ctx context.Context) Result
	// Write persists the output.
	Write(ctx context.Context) Result
	// Cleanup releases temporary resources.
	Cleanup(ctx context.Context) Result
}

// Phase names a lifecycle phase.
type Phase string

const (
	PhaseInit    Phase = "init"
	PhaseRead    Phase = "read"
	PhaseProcess Phase = "process"
	PhaseWrite   Phase = "write"
	PhaseCleanup Phase = "cleanup"
)

// Run executes the phases of s in order and returns the first non-Success
// result, or the Cleanup result when every other phase succeeded. Cleanup is
// deferred so it also runs when a phase panics; the panic is then re-raised
// for the process boundary to handle.
func Run(ctx context.Context, s Stage, log *zap.Logger) (res Result) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("stage", s.Name()))
	started := time.Now()
	state := Created
	log.Debug("stage created")

	defer func() {
		p := recover()
		cres := runPhase(ctx, log, PhaseCleanup, s.Cleanup)
		if p != nil {
			log.Error("stage panicked", zap.Any("panic", p), zap.Stringer("state", state))
			panic(p)
		}
		if res == Success && cres != Success {
			res = cres
		}
		fields := []zap.Field{
			zap.Stringer("result", res),
			zap.Duration("elapsed", time.Since(started)),
		}
		if res == Success {
			log.Info("stage finished", fields...)
		} else {
			log.Error("stage stopped", append(fields, zap.Stringer("state", state))...)
		}
	}()

	phases := []struct {
		phase Phase
		fn    func(context.Context) Result
	}{
		{PhaseInit, s.Init},
		{PhaseRead, s.Read},
		{PhaseProcess, s.Process},
		{PhaseWrite, s.Write},
	}
	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", zap.String("phase", string(p.phase)), zap.Error(err))
			return Failed
		}
		if r := runPhase(ctx, log, p.phase, p.fn); r != Success {
			return r
		}
		if p.phase == PhaseInit {
			state = Initialized
		}
	}
	return Success
}

func runPhase(ctx context.Context, log *zap.Logger, phase Phase, fn func(context.Context) Result) Result {
	log.Debug("phase starting", zap.String("phase", string(phase)))
	r := fn(ctx)
	if r != Success {
		log.Warn("phase did not succeed", zap.String("phase", string(phase)), zap.Stringer("result", r))
		return r
	}
	log.Debug("phase done", zap.String("phase", string(phase)))
	return r
}
