package process

import (
	"context"
	"strings"
	"sync"
)

// Invocation records one call made through a FakeRunner.
type Invocation struct {
	Name string
	Args []string
}

// FakeRunner is a test double for Runner. Results are looked up by the
// joined "name args..." command line; unmatched commands succeed with an
// empty Result, which is almost always what a teardown-style test wants.
type FakeRunner struct {
	mu          sync.Mutex
	Invocations []Invocation
	Results     map[string]Result
	Errors      map[string]error
}

// NewFakeRunner returns an empty FakeRunner ready for use.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Results: make(map[string]Result),
		Errors:  make(map[string]error),
	}
}

// SetResult registers the Result returned for the given command line.
func (f *FakeRunner) SetResult(commandLine string, res Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[commandLine] = res
	f.Errors[commandLine] = err
}

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Invocations = append(f.Invocations, Invocation{Name: name, Args: append([]string(nil), args...)})

	key := strings.Join(append([]string{name}, args...), " ")
	return f.Results[key], f.Errors[key]
}

// Called reports whether any invocation matches name with the given
// leading args (a prefix match, so callers need not spell out every flag).
func (f *FakeRunner) Called(name string, argPrefix ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, inv := range f.Invocations {
		if inv.Name != name {
			continue
		}
		if len(argPrefix) > len(inv.Args) {
			continue
		}
		match := true
		for i, a := range argPrefix {
			if inv.Args[i] != a {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
