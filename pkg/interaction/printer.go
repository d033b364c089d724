// pkg/interaction/printer.go

package interaction

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer writes operator-facing messages. Logs go through zap; these are
// the lines a human is expected to read and act on.
type Printer struct {
	Out io.Writer
}

// NewPrinter returns a Printer on stdout.
func NewPrinter() *Printer {
	return &Printer{Out: os.Stdout}
}

var (
	importantColor = color.New(color.FgYellow, color.Bold)
	successColor   = color.New(color.FgGreen, color.Bold)
	errorColor     = color.New(color.FgRed, color.Bold)
	headingColor   = color.New(color.FgCyan, color.Bold)
)

func (p *Printer) Plain(format string, args ...any) {
	_, _ = fmt.Fprintf(p.Out, format+"\n", args...)
}

func (p *Printer) Heading(format string, args ...any) {
	_, _ = headingColor.Fprintf(p.Out, format+"\n", args...)
}

func (p *Printer) Important(format string, args ...any) {
	_, _ = importantColor.Fprintf(p.Out, format+"\n", args...)
}

func (p *Printer) Success(format string, args ...any) {
	_, _ = successColor.Fprintf(p.Out, format+"\n", args...)
}

func (p *Printer) Error(format string, args ...any) {
	_, _ = errorColor.Fprintf(p.Out, format+"\n", args...)
}
