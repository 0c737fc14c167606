package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/moviemix/internal"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/moviemix/pkg/logger"
)

type Mode string

const (
	ModeEmbedded Mode = "embedded"
	ModeRedirect Mode = "redirect"
)

// Instruction tells the client how to hand control to the gateway UI.
type Instruction struct {
	Mode          Mode   `json:"mode"`
	SessionHandle string `json:"session_handle,omitempty"`
	URL           string `json:"url,omitempty"`
	Environment   string `json:"environment,omitempty"`
}

// Widget starts an embedded checkout for a session handle.
type Widget interface {
	Launch(ctx context.Context, sessionHandle string) (*Instruction, error)
}

type Trigger struct {
	widget Widget
	logger *slog.Logger
}

// NewTrigger builds a trigger; a nil widget means redirect only.
func NewTrigger(widget Widget, logger *slog.Logger) *Trigger {
	return &Trigger{
		widget: widget,
		logger: logger,
	}
}

// Launch prefers the embedded widget and falls back to the hosted page.
// Exactly one mode is returned, or CheckoutUnavailableError.
func (t *Trigger) Launch(ctx context.Context, order *gatewaytypes.Order) (*Instruction, error) {
	log := logger.FromOr(ctx, t.logger).With("order_id", order.ID)

	if t.widget != nil && order.SessionHandle != "" {
		inst, err := t.launchWidget(ctx, order.SessionHandle)
		if err == nil {
			log.Debug("embedded checkout launched")
			return inst, nil
		}
		log.Warn("embedded checkout failed, falling back to redirect", "error", err)
	}

	if order.HostedCheckoutURL != "" {
		return &Instruction{
			Mode:          ModeRedirect,
			SessionHandle: order.SessionHandle,
			URL:           order.HostedCheckoutURL,
		}, nil
	}

	log.Error("no checkout mode available")
	return nil, internal.NewCheckoutUnavailableError(order.ID)
}

func (t *Trigger) launchWidget(ctx context.Context, session string) (inst *Instruction, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = fmt.Errorf("widget panicked: %v", r)
		}
	}()

	inst, err = t.widget.Launch(ctx, session)
	if err != nil {
		return nil, err
	}
	if inst == nil || inst.Mode != ModeEmbedded {
		return nil, errors.New("widget returned no embedded instruction")
	}
	return inst, nil
}
