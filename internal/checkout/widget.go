package checkout

import (
	"context"
	"errors"
	"fmt"
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

var ErrSessionRequired = errors.New("payment session handle is required")

// SDKWidget describes a Cashfree JS SDK checkout launch; the browser performs it.
type SDKWidget struct {
	Environment string
}

func NewSDKWidget(environment string) (*SDKWidget, error) {
	switch environment {
	case EnvironmentSandbox, EnvironmentProduction:
		return &SDKWidget{Environment: environment}, nil
	default:
		return nil, fmt.Errorf("unknown checkout environment %q", environment)
	}
}

func (w *SDKWidget) Launch(ctx context.Context, sessionHandle string) (*Instruction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionHandle == "" {
		return nil, ErrSessionRequired
	}
	return &Instruction{
		Mode:          ModeEmbedded,
		SessionHandle: sessionHandle,
		Environment:   w.Environment,
	}, nil
}
