// Package bootstrap keeps the registry of framework adapters and
// bootstraps the selected adapter once per worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/session"
)

// DefaultAppEnv is the application environment used if none is configured.
const DefaultAppEnv = "Development"

const namespaceSeparator = `\`

var (
	ErrUnknownAdapter   = errors.New("unknown framework adapter")
	ErrDuplicateAdapter = errors.New("framework adapter already registered")
	ErrInvalidAdapter   = errors.New("invalid framework adapter")
)

// Config selects and configures the framework adapter.
type Config struct {
	// Adapter is the short name of the framework adapter, e.g. "Flow".
	Adapter string `conf:"adapter"`

	// AppEnv is the application environment (framework context).
	AppEnv string `conf:"appenv"`

	// Debug enables debug behaviour of the adapter.
	Debug bool `conf:"debug"`

	// Settings is the path of the adapter settings file.
	Settings string `conf:"settings"`
}

// Params are handed to an adapter factory.
type Params struct {
	// AppEnv is the application environment, never empty.
	AppEnv string

	// Debug enables debug behaviour of the adapter.
	Debug bool

	// SettingsFile is the path of the adapter settings file, if any.
	SettingsFile string

	// SessionStore is the session store shared by all workers.
	SessionStore session.Store

	// Log is the logger to use for the application.
	Log *zap.Logger
}

// Factory constructs a bootstrapped application.
type Factory func(context.Context, Params) (framework.Application, error)

// Registry maps adapter short names to factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return ErrInvalidAdapter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, name)
	}

	r.factories[name] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve looks up a factory. It tries the name as given, the name without
// leading namespace separators, and the capitalised last segment of the
// name; the first registered candidate wins.
func (r *Registry) Resolve(name string) (string, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, candidate := range candidates(name) {
		if factory, ok := r.factories[candidate]; ok {
			return candidate, factory, nil
		}
	}

	return "", nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownAdapter, name, strings.Join(r.namesLocked(), ", "))
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func candidates(name string) []string {
	name = strings.ReplaceAll(name, namespaceSeparator+namespaceSeparator, namespaceSeparator)

	trimmed := strings.TrimLeft(name, namespaceSeparator)

	short := trimmed
	if i := strings.LastIndex(short, namespaceSeparator); i >= 0 {
		short = short[i+1:]
	}

	return []string{name, trimmed, capitalize(short)}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Bootstrapper resolves the configured adapter once and constructs
// applications from it.
type Bootstrapper struct {
	name    string
	factory Factory
	params  Params
	log     *zap.Logger
}

// New resolves the adapter named in config. It fails if the name is unknown.
func New(registry *Registry, config Config, store session.Store, log *zap.Logger) (*Bootstrapper, error) {
	name, factory, err := registry.Resolve(config.Adapter)
	if err != nil {
		return nil, err
	}

	appEnv := config.AppEnv
	if appEnv == "" {
		appEnv = DefaultAppEnv
	}

	if store == nil {
		store = session.NewMemoryStore()
	}

	log = log.Named("bootstrap")

	log.Debug("resolved framework adapter",
		zap.String("requested", config.Adapter),
		zap.String("adapter", name),
		zap.String("appenv", appEnv),
	)

	return &Bootstrapper{
		name:    name,
		factory: factory,
		params: Params{
			AppEnv:       appEnv,
			Debug:        config.Debug,
			SettingsFile: config.Settings,
			SessionStore: store,
			Log:          log,
		},
		log: log,
	}, nil
}

// Adapter returns the resolved adapter name.
func (b *Bootstrapper) Adapter() string {
	return b.name
}

// Bootstrap constructs a new application.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (framework.Application, error) {
	params := b.params
	params.Log = b.log.Named(strings.ToLower(b.name))

	app, err := b.factory(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap %s: %w", b.name, err)
	}

	return app, nil
}
