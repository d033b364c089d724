// pkg/interaction/reader.go

package interaction

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrNoInput is returned when the input stream closes while a prompt is open.
var ErrNoInput = errors.New("no operator input available (stdin closed)")

// Prompter reads operator answers line by line. Prompts are written to out
// (stderr for the real terminal) so stdout stays clean for summaries.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter builds a Prompter over arbitrary streams.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// NewTerminalPrompter reads stdin and prompts on stderr.
func NewTerminalPrompter() *Prompter {
	return NewPrompter(os.Stdin, os.Stderr)
}

// StdinIsTerminal reports whether stdin is attached to a TTY.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadLine prompts the user with a label and returns a trimmed line of input.
func (p *Prompter) ReadLine(ctx context.Context, label string) (string, error) {
	logger := otelzap.Ctx(ctx)
	logger.Debug("Prompting user for input", zap.String("label", label))

	if err := ctx.Err(); err != nil {
		return "", err
	}

	_, _ = fmt.Fprint(p.out, label+": ")

	text, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		if errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintln(p.out)
			return "", cerr.Wrapf(ErrNoInput, "reading %q", label)
		}
		logger.Error("Failed to read user input", zap.Error(err))
		return "", err
	}

	return strings.TrimSpace(text), nil
}

// PromptValidated asks until validate accepts the answer. validate may
// normalise the value it returns.
func (p *Prompter) PromptValidated(ctx context.Context, label string, validate func(string) (string, error)) (string, error) {
	for {
		input, err := p.ReadLine(ctx, label)
		if err != nil {
			return "", err
		}
		value, verr := validate(input)
		if verr == nil {
			return value, nil
		}
		otelzap.Ctx(ctx).Debug("Rejected input", zap.String("label", label), zap.Error(verr))
		_, _ = fmt.Fprintf(p.out, "  %v\n", verr)
	}
}

// PromptYesNo asks until the answer is one of y, yes, n, no.
func (p *Prompter) PromptYesNo(ctx context.Context, question string) (bool, error) {
	label := fmt.Sprintf("%s [y/n]", question)
	for {
		input, err := p.ReadLine(ctx, label)
		if err != nil {
			return false, err
		}
		if answer, ok := NormalizeYesNoInput(input); ok {
			otelzap.Ctx(ctx).Debug("User answered", zap.String("question", question), zap.Bool("answer", answer))
			return answer, nil
		}
		_, _ = fmt.Fprintln(p.out, "  please answer yes or no")
	}
}

// WaitForEnter blocks until the operator presses Enter.
func (p *Prompter) WaitForEnter(ctx context.Context, message string) error {
	_, err := p.ReadLine(ctx, message)
	return err
}
