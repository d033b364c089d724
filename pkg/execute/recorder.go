// pkg/execute/recorder.go

package execute

import (
	"context"
	"strings"
	"sync"
)

// Response is a canned result for a Recorder.
type Response struct {
	Output   string
	ExitCode int
	Err      error
	// Hook runs before the response is returned, e.g. to create files a
	// real command would have created.
	Hook func(opts Options)
}

// Recorder is a Runner that records every invocation and answers from
// canned responses keyed by command-line prefix. The longest matching
// prefix wins; unmatched commands get Default.
type Recorder struct {
	mu        sync.Mutex
	Calls     []string
	Responses map[string]Response
	Default   Response
}

// NewRecorder returns a Recorder that succeeds with empty output by default.
func NewRecorder() *Recorder {
	return &Recorder{Responses: map[string]Response{}}
}

// On registers a response for commands starting with prefix.
func (r *Recorder) On(prefix string, resp Response) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[prefix] = resp
	return r
}

func (r *Recorder) Run(_ context.Context, opts Options) (string, error) {
	line := opts.String()

	r.mu.Lock()
	r.Calls = append(r.Calls, line)
	resp := r.Default
	best := -1
	for prefix, candidate := range r.Responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			resp, best = candidate, len(prefix)
		}
	}
	r.mu.Unlock()

	if resp.Hook != nil {
		resp.Hook(opts)
	}
	if opts.Stream != nil && resp.Output != "" {
		_, _ = opts.Stream.Write([]byte(resp.Output))
	}
	if resp.Err != nil {
		return resp.Output, resp.Err
	}
	if resp.ExitCode != 0 {
		return resp.Output, &ExitError{Command: line, Code: resp.ExitCode, Summary: Summarize(resp.Output, 2)}
	}
	return resp.Output, nil
}

// Ran reports whether any recorded call starts with prefix.
func (r *Recorder) Ran(prefix string) bool {
	return r.Index(prefix) >= 0
}

// Index returns the position of the first call starting with prefix, or -1.
func (r *Recorder) Index(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.Calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}
