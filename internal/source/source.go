package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	crdb "github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/nhle/fossilsync/internal/credential"
	"github.com/nhle/fossilsync/internal/model"
)

// AuthError indicates that authentication against a remote tracker failed.
type AuthError struct {
	ServiceType ServiceType
	Message     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.ServiceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ConfigError reports a missing or invalid option in a target section.
// It is always raised before any network activity.
type ConfigError struct {
	Target string
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Target, e.Key, e.Reason)
}

// IsConfigError reports whether err (or any error in its chain) is a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// MissingOption returns the error for a required key absent from target,
// with a hint telling the user where to add it.
func MissingOption(target, key string) error {
	return crdb.WithHintf(
		&ConfigError{Target: target, Key: key, Reason: "missing required option"},
		"add %q under targets.%s in the configuration file", key, target,
	)
}

// InvalidOption returns the error for a key whose value cannot be used.
func InvalidOption(target, key string, cause error) error {
	return crdb.WithHintf(
		&ConfigError{Target: target, Key: key, Reason: cause.Error()},
		"fix the value of %q under targets.%s", key, target,
	)
}

// ServiceType identifies the kind of remote tracker.
type ServiceType string

const (
	ServiceTypeFossil ServiceType = "fossil"
)

// Service is the contract every tracker adapter implements. A Service is
// built for one synchronization pass and discarded afterwards.
type Service interface {
	// Type returns the service type identifier.
	Type() ServiceType

	// Target returns the configured target name.
	Target() string

	// Issues returns the normalized issues currently open on the remote.
	Issues(ctx context.Context) ([]model.Issue, error)

	// UDAs declares the custom fields this service's issues carry.
	UDAs() []model.UDA
}

// Deps are the collaborators handed to every service constructor.
type Deps struct {
	Logger      *zap.Logger
	Secrets     credential.Resolver
	Interactive bool
}

// Factory builds services of one type.
type Factory struct {
	// New validates cfg and builds a service. Validation failures are
	// ConfigErrors and happen before any I/O.
	New func(ctx context.Context, cfg model.TargetConfig, deps Deps) (Service, error)

	// UDAs declares the custom fields without constructing a service.
	UDAs func() []model.UDA

	// Validate checks cfg without resolving secrets or touching the
	// network. Optional.
	Validate func(cfg model.TargetConfig) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[ServiceType]Factory)
)

// Register makes a service type available to the sync engine and CLI.
// It panics when the type is registered twice.
func Register(t ServiceType, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[t]; dup {
		panic(fmt.Sprintf("source: service %q registered twice", t))
	}
	registry[t] = f
}

// Lookup returns the factory registered for t.
func Lookup(t ServiceType) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[t]
	return f, ok
}

// Types returns all registered service types in name order.
func Types() []ServiceType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]ServiceType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// New builds the service described by cfg using the registered factory.
func New(ctx context.Context, cfg model.TargetConfig, deps Deps) (Service, error) {
	f, ok := Lookup(ServiceType(cfg.Service))
	if !ok {
		return nil, &ConfigError{
			Target: cfg.Name,
			Key:    "service",
			Reason: fmt.Sprintf("unknown service %q", cfg.Service),
		}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return f.New(ctx, cfg, deps)
}

// Validate checks cfg against its registered service without building it.
func Validate(cfg model.TargetConfig) error {
	f, ok := Lookup(ServiceType(cfg.Service))
	if !ok {
		return &ConfigError{
			Target: cfg.Name,
			Key:    "service",
			Reason: fmt.Sprintf("unknown service %q", cfg.Service),
		}
	}
	if f.Validate == nil {
		return nil
	}
	return f.Validate(cfg)
}
