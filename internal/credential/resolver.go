package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	gosync "sync"

	"github.com/99designs/keyring"
)

// Oracle prefixes accepted in a password option.
const (
	OraclePrefix     = "@oracle:"
	OracleUseKeyring = "@oracle:use_keyring"
	OracleAskPass    = "@oracle:ask_password"
	OracleEvalPrefix = "@oracle:eval:"
)

// ErrNotInteractive is returned when resolving a secret would require a
// prompt but prompting is disabled.
var ErrNotInteractive = errors.New("password prompt required in non-interactive mode")

// Request describes one secret to resolve.
type Request struct {
	// Key names the secret in the keyring (e.g. "fossil://alice@host/repo/").
	Key string

	// Username is shown in prompts.
	Username string

	// Value is the raw password option: a plain password, empty, or an
	// @oracle: reference.
	Value string

	// Interactive allows prompting on the terminal.
	Interactive bool
}

// NeedsResolution reports whether value must go through a Resolver
// instead of being used as the password directly.
func NeedsResolution(value string) bool {
	return value == "" || strings.HasPrefix(value, OraclePrefix)
}

// Resolver turns a possibly indirect credential reference into a
// plaintext secret.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (string, error)

	// Forget discards a remembered secret after the remote rejected it,
	// so the next resolution asks again.
	Forget(ctx context.Context, req Request) error
}

// PromptFunc asks the user for a secret.
type PromptFunc func(ctx context.Context, title string) (string, error)

// OracleResolver resolves @oracle: references against a keyring, a shell
// command, or an interactive prompt.
type OracleResolver struct {
	openStore func() (*Store, error)
	prompt    PromptFunc

	once     gosync.Once
	store    *Store
	storeErr error

	// promptMu serializes terminal prompts across concurrent targets.
	promptMu gosync.Mutex
}

// ResolverOption configures an OracleResolver.
type ResolverOption func(*OracleResolver)

// WithStore uses store instead of the system keyring.
func WithStore(store *Store) ResolverOption {
	return func(r *OracleResolver) {
		r.openStore = func() (*Store, error) { return store, nil }
	}
}

// WithPrompt replaces the terminal prompt.
func WithPrompt(p PromptFunc) ResolverOption {
	return func(r *OracleResolver) {
		r.prompt = p
	}
}

// NewOracleResolver creates a resolver backed by the system keyring and a
// terminal password prompt. The keyring is opened on first use.
func NewOracleResolver(opts ...ResolverOption) *OracleResolver {
	r := &OracleResolver{
		openStore: func() (*Store, error) {
			ring, err := OpenKeyring()
			if err != nil {
				return nil, err
			}
			return NewStore(ring), nil
		},
		prompt: PromptPassword,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements Resolver.
func (r *OracleResolver) Resolve(ctx context.Context, req Request) (string, error) {
	switch {
	case !NeedsResolution(req.Value):
		return req.Value, nil
	case req.Value == "" || req.Value == OracleUseKeyring:
		return r.fromKeyring(ctx, req)
	case req.Value == OracleAskPass:
		return r.ask(ctx, req)
	case strings.HasPrefix(req.Value, OracleEvalPrefix):
		return runOracleCommand(ctx, strings.TrimPrefix(req.Value, OracleEvalPrefix))
	default:
		return "", fmt.Errorf("unknown password oracle %q", req.Value)
	}
}

func (r *OracleResolver) keyringStore() (*Store, error) {
	r.once.Do(func() {
		r.store, r.storeErr = r.openStore()
	})
	return r.store, r.storeErr
}

// fromKeyring looks the secret up and, when absent, prompts for it and
// stores the answer for next time.
func (r *OracleResolver) fromKeyring(ctx context.Context, req Request) (string, error) {
	store, err := r.keyringStore()
	if err != nil {
		return "", err
	}

	secret, err := lookup(store, req.Key)
	if err != nil || secret != "" {
		return secret, err
	}

	r.promptMu.Lock()
	defer r.promptMu.Unlock()

	// Another target may have prompted for the same key meanwhile.
	secret, err = lookup(store, req.Key)
	if err != nil || secret != "" {
		return secret, err
	}

	secret, err = r.askLocked(ctx, req)
	if err != nil {
		return "", err
	}
	if err := store.Set(req.Key, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// lookup returns "" without error when key is not in the keyring.
func lookup(store *Store, key string) (string, error) {
	secret, err := store.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return secret, err
}

// Forget implements Resolver. Only keyring-backed values are remembered;
// other forms are left alone.
func (r *OracleResolver) Forget(ctx context.Context, req Request) error {
	if req.Value != "" && req.Value != OracleUseKeyring {
		return nil
	}

	store, err := r.keyringStore()
	if err != nil {
		return err
	}
	if err := store.Delete(req.Key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

func (r *OracleResolver) ask(ctx context.Context, req Request) (string, error) {
	r.promptMu.Lock()
	defer r.promptMu.Unlock()

	return r.askLocked(ctx, req)
}

// askLocked prompts for a secret; promptMu must be held.
func (r *OracleResolver) askLocked(ctx context.Context, req Request) (string, error) {
	if !req.Interactive {
		return "", fmt.Errorf("resolving password for %s: %w", req.Key, ErrNotInteractive)
	}
	title := fmt.Sprintf("Password for %s (%s)", req.Username, req.Key)
	secret, err := r.prompt(ctx, title)
	if err != nil {
		return "", fmt.Errorf("prompting for password: %w", err)
	}
	return secret, nil
}

// runOracleCommand runs command through the shell and returns the first
// line it prints.
func runOracleCommand(ctx context.Context, command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("empty @oracle:eval command")
	}

	out, err := exec.CommandContext(ctx, "sh", "-c", command).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf(
				"password command failed: %s", strings.TrimSpace(string(exitErr.Stderr)),
			)
		}
		return "", fmt.Errorf("running password command: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	return "", nil
}
