package credential

import (
	"context"

	"github.com/charmbracelet/huh"
)

// PromptPassword asks for a secret on the terminal with echo disabled.
func PromptPassword(ctx context.Context, title string) (string, error) {
	var secret string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&secret),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}

	return secret, nil
}
