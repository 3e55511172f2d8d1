package testutil

import (
	"context"
	"fmt"
	"sync"
)

// RecordingLoader is a scripted external bundle loader. Each bundle has a
// queue of results consumed one per call; once a queue runs dry the loader
// succeeds. Calls are recorded in order.
type RecordingLoader struct {
	mu      sync.Mutex
	results map[string][]error
	gates   map[string]chan struct{}
	started map[string]chan struct{}
	calls   []string
}

// NewRecordingLoader creates a loader where every bundle succeeds.
func NewRecordingLoader() *RecordingLoader {
	return &RecordingLoader{
		results: make(map[string][]error),
		gates:   make(map[string]chan struct{}),
		started: make(map[string]chan struct{}),
	}
}

// Script queues results for the next calls to name. A nil entry is success.
func (l *RecordingLoader) Script(name string, results ...error) *RecordingLoader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[name] = append(l.results[name], results...)
	return l
}

// FailAlways makes every call for name fail.
func (l *RecordingLoader) FailAlways(name string) *RecordingLoader {
	errs := make([]error, 64)
	for i := range errs {
		errs[i] = fmt.Errorf("bundle %s unavailable", name)
	}
	return l.Script(name, errs...)
}

// Gate makes calls for name block until Release(name). The returned channel
// is closed when the first gated call has started.
func (l *RecordingLoader) Gate(name string) <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gates[name] = make(chan struct{})
	l.started[name] = make(chan struct{})
	return l.started[name]
}

// Release unblocks gated calls for name.
func (l *RecordingLoader) Release(name string) {
	l.mu.Lock()
	gate := l.gates[name]
	delete(l.gates, name)
	l.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// LoadBundle implements the loader contract.
func (l *RecordingLoader) LoadBundle(ctx context.Context, name string) error {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	gate := l.gates[name]
	if started, ok := l.started[name]; ok {
		close(started)
		delete(l.started, name)
	}
	var result error
	if queue := l.results[name]; len(queue) > 0 {
		result = queue[0]
		l.results[name] = queue[1:]
	}
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return result
}

// Calls returns the bundle names loaded so far, in call order.
func (l *RecordingLoader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// CallCount returns how many times name was loaded.
func (l *RecordingLoader) CallCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == name {
			n++
		}
	}
	return n
}
