package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/observability"
)

var ErrPipelineConsumed = errors.New("bootstrap: pipeline already run")

// Stage is one unit of bootstrap work. Run blocks until the stage's
// effects are durably on disk or an error occurred.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// Step binds a stage to the phase its success establishes.
type Step struct {
	Stage     Stage
	Completes Phase
}

// StageError wraps a stage failure with the stage's name.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("bootstrap: stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline runs its steps strictly in order, stopping at the first error.
// It is single-threaded and one-shot: a consumed pipeline cannot be run
// again, matching the operator contract of re-running bootstrap from the
// start after a failure.
type Pipeline struct {
	steps []Step
	phase Phase
	done  bool
}

// NewPipeline returns a fresh pipeline in PhaseUninitialized.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps, phase: PhaseUninitialized}
}

// Phase returns the highest phase the pipeline has reached.
func (p *Pipeline) Phase() Phase {
	return p.phase
}

// Run executes every step in order. No stage starts before the previous
// one finished, no stage is skipped or retried, and the first failure
// leaves the pipeline in PhaseFailed.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.done {
		return ErrPipelineConsumed
	}
	p.done = true

	total := len(p.steps)
	for i, step := range p.steps {
		name := step.Stage.Name()
		if err := ctx.Err(); err != nil {
			p.phase = PhaseFailed
			log.Error().Msgf("bootstrap.Pipeline.Run aborted before stage=%q step=%d/%d: %v", name, i+1, total, err)
			return err
		}

		log.Info().Msgf("bootstrap.Pipeline.Run stage=%q step=%d/%d", name, i+1, total)
		start := time.Now()
		err := step.Stage.Run(ctx)
		duration := time.Since(start)
		if err != nil {
			p.phase = PhaseFailed
			observability.RecordStage(name, "failed", duration)
			log.Error().Msgf("bootstrap.Pipeline.Run stage=%q step=%d/%d failed after %s: %v", name, i+1, total, duration, err)
			return &StageError{Stage: name, Err: err}
		}
		p.phase = step.Completes
		observability.RecordStage(name, "ok", duration)
		log.Info().Msgf("bootstrap.Pipeline.Run stage=%q step=%d/%d done in %s phase=%q", name, i+1, total, duration, p.phase)
	}

	if total == 0 {
		p.phase = PhaseBootstrapComplete
	}
	return nil
}
