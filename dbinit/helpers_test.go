package dbinit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aponysus/hostkit/classify"
	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/internal/logging"
	"github.com/aponysus/hostkit/retry"
)

type spyScope struct {
	closes atomic.Int32
}

func (s *spyScope) Resolve(_ context.Context, t reflect.Type) (any, error) {
	return nil, &host.ServiceNotFoundError{Type: t}
}

func (s *spyScope) Close() error {
	s.closes.Add(1)
	return nil
}

type spyHost struct {
	env      host.Environment
	scopeErr error
	scope    *spyScope
	created  atomic.Int32
}

func newSpyHost() *spyHost {
	return &spyHost{env: host.Production, scope: &spyScope{}}
}

func (h *spyHost) Environment() host.Environment { return h.env }

func (h *spyHost) CreateScope(context.Context) (host.Scope, error) {
	h.created.Add(1)
	if h.scopeErr != nil {
		return nil, h.scopeErr
	}
	return h.scope, nil
}

type catalogDB struct {
	name string
}

// flakyMigrator fails with the queued errors, then succeeds.
type flakyMigrator struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (m *flakyMigrator) migrate(context.Context, *catalogDB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	if len(m.errs) > 1 {
		m.errs = m.errs[1:]
	}
	return err
}

func (m *flakyMigrator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func failTimes(n int, err error) *flakyMigrator {
	m := &flakyMigrator{}
	for i := 0; i < n; i++ {
		m.errs = append(m.errs, err)
	}
	m.errs = append(m.errs, nil)
	return m
}

func alwaysFail(err error) *flakyMigrator {
	return &flakyMigrator{errs: []error{err}}
}

func catalogTarget(m *flakyMigrator) Target[*catalogDB] {
	return Target[*catalogDB]{
		Open: func(context.Context, host.Scope) (*catalogDB, error) {
			return &catalogDB{name: "catalog"}, nil
		},
		Migrate: m.migrate,
	}
}

func transientErr() error {
	return classify.MarkTransient(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) count(msg string) int {
	return strings.Count(b.String(), `"msg":"`+msg+`"`)
}

// testOptions wires a JSON log buffer and a recording sleep.
func testOptions(t *testing.T) (*logBuffer, *sleepRecorder, []Option) {
	t.Helper()
	logs := &logBuffer{}
	sleeps := &sleepRecorder{}
	opts := []Option{
		WithLogger(logging.NewWithWriter(logs, slog.LevelDebug, logging.FormatJSON)),
		WithRetryOptions(retry.WithSleep(sleeps.sleep)),
		WithRunID("run-1"),
	}
	return logs, sleeps, opts
}
