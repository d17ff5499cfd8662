package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	crdb "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/fossilsync/internal/model"
)

type stubService struct{ target string }

func (s stubService) Type() ServiceType                             { return "stub" }
func (s stubService) Target() string                                { return s.target }
func (s stubService) Issues(context.Context) ([]model.Issue, error) { return nil, nil }
func (s stubService) UDAs() []model.UDA                             { return nil }

func init() {
	Register("stub", Factory{
		New: func(ctx context.Context, cfg model.TargetConfig, deps Deps) (Service, error) {
			if deps.Logger == nil {
				return nil, errors.New("logger not defaulted")
			}
			return stubService{target: cfg.Name}, nil
		},
		UDAs: func() []model.UDA { return nil },
		Validate: func(cfg model.TargetConfig) error {
			if !cfg.Has("url") {
				return MissingOption(cfg.Name, "url")
			}
			return nil
		},
	})
}

func TestRegistry(t *testing.T) {
	_, ok := Lookup("stub")
	assert.True(t, ok)
	assert.Contains(t, Types(), ServiceType("stub"))

	assert.Panics(t, func() {
		Register("stub", Factory{})
	})
}

func TestNew(t *testing.T) {
	svc, err := New(context.Background(), model.TargetConfig{Name: "one", Service: "stub"}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, "one", svc.Target())

	_, err = New(context.Background(), model.TargetConfig{Name: "two", Service: "gitlab"}, Deps{})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidate(t *testing.T) {
	err := Validate(model.TargetConfig{Name: "one", Service: "stub", Options: map[string]string{}})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	err = Validate(model.TargetConfig{Name: "one", Service: "stub", Options: map[string]string{"url": ""}})
	assert.NoError(t, err)

	err = Validate(model.TargetConfig{Name: "one", Service: "nope"})
	assert.True(t, IsConfigError(err))
}

func TestConfigErrorHints(t *testing.T) {
	err := MissingOption("repo", "report_id")
	assert.Equal(t, "[repo] report_id: missing required option", err.Error())
	assert.Contains(t, crdb.FlattenHints(err), "targets.repo")

	wrapped := fmt.Errorf("loading: %w", InvalidOption("repo", "url", errors.New("bad scheme")))
	assert.True(t, IsConfigError(wrapped))
	assert.False(t, IsAuthError(wrapped))
	assert.Contains(t, crdb.FlattenHints(wrapped), `"url"`)
}

func TestAuthError(t *testing.T) {
	err := fmt.Errorf("pulling: %w", &AuthError{ServiceType: ServiceTypeFossil, Message: "login rejected"})
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "auth error (fossil): login rejected")
}
