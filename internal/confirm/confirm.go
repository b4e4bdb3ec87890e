// Package confirm implements the staged approval flow that stands between an
// operator and a fingerprint mutation.
package confirm

import (
	"fmt"
	"time"

	"github.com/ilexum-group/janus/internal/utils"
	"github.com/ilexum-group/janus/pkg/models"
)

// Stage identifies one step of the approval flow.
type Stage string

// Approval stages, in the order they run.
const (
	StageBasic Stage = "basic"
	StageRisk  Stage = "risk"
	StageFinal Stage = "final"
)

// State is the outcome of a confirmation run. Cancelled is absorbing: once
// reached, no further stage runs and the operation must not proceed.
type State string

// Terminal confirmation states.
const (
	StateApproved  State = "approved"
	StateCancelled State = "cancelled"
)

// Prompter asks the operator one stage's question. Implementations decide
// how: interactive terminal, auto-approve flag, test fake.
type Prompter interface {
	Confirm(stage Stage, op *models.Operation) (models.ConfirmationResult, error)
}

// Outcome reports how a confirmation run ended and which stages the operator
// actually saw.
type Outcome struct {
	State         State
	StagesReached []string
	CancelReason  string
}

// Gate runs the staged approval flow. Every stage must be explicitly
// approved; declining, timing out, or a prompter failure cancels the whole
// operation. Approval can never be reached without passing through each
// required stage in order.
type Gate struct {
	prompter          Prompter
	timeout           time.Duration
	requireThreeStage bool
	logger            utils.Logger
}

// NewGate creates a confirmation gate. timeout <= 0 disables the per-stage
// deadline. When requireThreeStage is false only the final stage runs.
func NewGate(prompter Prompter, timeout time.Duration, requireThreeStage bool, logger utils.Logger) *Gate {
	return &Gate{
		prompter:          prompter,
		timeout:           timeout,
		requireThreeStage: requireThreeStage,
		logger:            logger,
	}
}

// stagesFor returns the stage sequence for an operation. High-risk
// operations always get the full flow regardless of configuration.
func (g *Gate) stagesFor(op *models.Operation) []Stage {
	if g.requireThreeStage || op.Risk == models.RiskHigh {
		return []Stage{StageBasic, StageRisk, StageFinal}
	}
	return []Stage{StageFinal}
}

// Run walks the operation through its stages. AdditionalInfo returned by one
// stage is merged into the operation before the next stage prompts, so later
// stages can show what earlier ones gathered.
func (g *Gate) Run(op *models.Operation) (Outcome, error) {
	outcome := Outcome{State: StateCancelled}

	for _, stage := range g.stagesFor(op) {
		outcome.StagesReached = append(outcome.StagesReached, string(stage))

		result, timedOut, err := g.promptWithTimeout(stage, op)
		if err != nil {
			outcome.CancelReason = err.Error()
			g.logCancel(op, stage, outcome.CancelReason)
			return outcome, err
		}
		if timedOut {
			outcome.CancelReason = fmt.Sprintf("no response within %s at %s stage", g.timeout, stage)
			g.logCancel(op, stage, outcome.CancelReason)
			return outcome, nil
		}
		if !result.Confirmed {
			outcome.CancelReason = fmt.Sprintf("declined at %s stage", stage)
			g.logCancel(op, stage, outcome.CancelReason)
			return outcome, nil
		}
		if len(result.AdditionalInfo) > 0 {
			op.MergeInfo(result.AdditionalInfo)
		}
	}

	outcome.State = StateApproved
	if g.logger != nil {
		g.logger.LogInfo("Operation approved", map[string]string{
			"operation": string(op.Type),
			"target":    op.Target,
			"risk":      string(op.Risk),
		})
	}
	return outcome, nil
}

// promptWithTimeout runs one prompt under the per-stage deadline. A prompt
// that outlives the deadline keeps running in its goroutine but its answer is
// discarded; the stage counts as cancelled.
func (g *Gate) promptWithTimeout(stage Stage, op *models.Operation) (models.ConfirmationResult, bool, error) {
	if g.timeout <= 0 {
		result, err := g.prompter.Confirm(stage, op)
		return result, false, err
	}

	type reply struct {
		result models.ConfirmationResult
		err    error
	}
	replies := make(chan reply, 1)
	go func() {
		result, err := g.prompter.Confirm(stage, op)
		replies <- reply{result: result, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case r := <-replies:
		return r.result, false, r.err
	case <-timer.C:
		return models.ConfirmationResult{}, true, nil
	}
}

func (g *Gate) logCancel(op *models.Operation, stage Stage, reason string) {
	if g.logger == nil {
		return
	}
	g.logger.LogWarn("Operation cancelled", map[string]string{
		"operation": string(op.Type),
		"target":    op.Target,
		"stage":     string(stage),
		"reason":    reason,
	})
}
