// pkg/bootstrap/confirm.go

package bootstrap

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultGrace is the pause given to an operator who skipped confirmation.
const DefaultGrace = 10 * time.Second

// YesNoAsker is the one prompt the gate needs.
type YesNoAsker interface {
	PromptYesNo(ctx context.Context, question string) (bool, error)
}

// Gate shows the plan and asks for go-ahead before anything changes.
type Gate struct {
	Prompter YesNoAsker
	Printer  *interaction.Printer
	Grace    time.Duration
	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewGate returns a gate with the default grace period.
func NewGate(prompter YesNoAsker, printer *interaction.Printer) *Gate {
	return &Gate{Prompter: prompter, Printer: printer, Grace: DefaultGrace, Sleep: sleepContext}
}

// Confirm returns nil to proceed or a declined error.
func (g *Gate) Confirm(rc *eos_io.RuntimeContext, plan *Plan) error {
	logger := otelzap.Ctx(rc.Ctx)

	g.Printer.Plain("")
	g.Printer.Plain("%s", plan.Summary())

	if plan.SkipConfirmation {
		logger.Info("Confirmation skipped", zap.Duration("grace", g.Grace))
		g.Printer.Important("Confirmation skipped. Proceeding in %s, press Ctrl+C to abort", g.Grace)
		return g.Sleep(rc.Ctx, g.Grace)
	}

	proceed, err := g.Prompter.PromptYesNo(rc.Ctx, "Do you want to proceed?")
	if err != nil {
		return err
	}
	if !proceed {
		logger.Info("Operator declined the bootstrap plan", zap.String("role", string(plan.Role)))
		return eos_err.NewDeclinedError("bootstrap")
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
