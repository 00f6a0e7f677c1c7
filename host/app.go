package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aponysus/hostkit/internal/logging"
)

// Host is the handle startup code passes around: it knows its environment
// and can open service scopes.
type Host interface {
	Environment() Environment
	CreateScope(ctx context.Context) (Scope, error)
}

// HostedService is a long-running component started by App.Run.
type HostedService interface {
	Name() string
	Run(ctx context.Context) error
}

type hostedFunc struct {
	name string
	run  func(ctx context.Context) error
}

func (h hostedFunc) Name() string                  { return h.name }
func (h hostedFunc) Run(ctx context.Context) error { return h.run(ctx) }

// HostedFunc adapts a function to HostedService.
func HostedFunc(name string, run func(ctx context.Context) error) HostedService {
	return hostedFunc{name: name, run: run}
}

// App is the concrete Host: an environment, a service container and the
// hosted services run by Run.
type App struct {
	env      Environment
	services *Services
	logger   *slog.Logger
	hosted   []HostedService
}

var _ Host = (*App)(nil)

type Option func(*App)

func WithEnvironment(env Environment) Option {
	return func(a *App) { a.env = env }
}

func WithServices(s *Services) Option {
	return func(a *App) { a.services = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

func WithHostedService(svc HostedService) Option {
	return func(a *App) {
		if svc != nil {
			a.hosted = append(a.hosted, svc)
		}
	}
}

// New builds an App. The environment defaults to Production and the logger
// to a no-op.
func New(opts ...Option) *App {
	a := &App{}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.env == "" {
		a.env = Production
	}
	if a.services == nil {
		a.services = NewServices()
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	return a
}

func (a *App) Environment() Environment { return a.env }
func (a *App) Services() *Services      { return a.services }
func (a *App) Logger() *slog.Logger     { return a.logger }

// CreateScope opens a new service scope. The caller must Close it.
func (a *App) CreateScope(ctx context.Context) (Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.services.NewScope(), nil
}

// AddHostedService appends svc to the services started by Run.
func (a *App) AddHostedService(svc HostedService) {
	if svc != nil {
		a.hosted = append(a.hosted, svc)
	}
}

// Run starts every hosted service and blocks until ctx is done or one of
// them fails; the rest are then canceled. A clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("host starting", "environment", a.env.String(), "services", len(a.hosted))

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range a.hosted {
		g.Go(func() error {
			err := svc.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("hosted service failed", "service", svc.Name(), "error", err)
				return fmt.Errorf("%s: %w", svc.Name(), err)
			}
			a.logger.Debug("hosted service stopped", "service", svc.Name())
			return nil
		})
	}
	if len(a.hosted) == 0 {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	err := g.Wait()
	a.logger.Info("host stopped")
	return err
}

// Close releases singleton services.
func (a *App) Close() error {
	return a.services.Close()
}
