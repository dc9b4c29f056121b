package gitexec

import (
	"context"
	"strings"
	"sync"
)

// Fake is a scripted Runner for tests. Responses are keyed by the
// space-joined args.
type Fake struct {
	mu        sync.Mutex
	Responses map[string]FakeResponse
	Calls     []FakeCall
}

// FakeResponse is the scripted outcome of one command.
type FakeResponse struct {
	Out string
	Err error
}

// FakeCall records one invocation.
type FakeCall struct {
	Dir  string
	Args []string
}

// Run implements Runner. Unscripted commands succeed with empty output.
func (f *Fake) Run(ctx context.Context, dir string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FakeCall{Dir: dir, Args: append([]string{}, args...)})
	r := f.Responses[strings.Join(args, " ")]
	return r.Out, r.Err
}

// Commands returns the recorded invocations as space-joined strings.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = strings.Join(c.Args, " ")
	}
	return out
}
