package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-reveal/core"
)

type RevealInitializer interface {
	InitializeReveal(ctx context.Context, set core.IdentifierSet) (core.InitPayload, error)
}

type InitializeRevealCommand struct {
	initializer RevealInitializer
}

func NewInitializeRevealCommand(initializer RevealInitializer) *InitializeRevealCommand {
	return &InitializeRevealCommand{initializer: initializer}
}

func (c *InitializeRevealCommand) Execute(ctx context.Context, msg InitializeRevealMessage) error {
	if c == nil || c.initializer == nil {
		return core.NewServerError(nil, "command: reveal initializer is required")
	}
	out, err := c.initializer.InitializeReveal(ctx, msg.Identifiers)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PruneAttemptsCommand struct {
	pruner core.AttemptPruner
}

func NewPruneAttemptsCommand(pruner core.AttemptPruner) *PruneAttemptsCommand {
	return &PruneAttemptsCommand{pruner: pruner}
}

func (c *PruneAttemptsCommand) Execute(ctx context.Context, msg PruneAttemptsMessage) error {
	if c == nil || c.pruner == nil {
		return core.NewServerError(nil, "command: attempt pruner is required")
	}
	deleted, err := c.pruner.Prune(ctx, msg.Policy)
	if err != nil {
		return err
	}
	storeResult(ctx, deleted)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

var (
	_ gocmd.Commander[InitializeRevealMessage] = (*InitializeRevealCommand)(nil)
	_ gocmd.Commander[PruneAttemptsMessage]    = (*PruneAttemptsCommand)(nil)
)
