package command

import (
	"github.com/goliatone/go-reveal/core"
)

const (
	TypeInitializeReveal = "reveal.command.initialize"
	TypePruneAttempts    = "reveal.command.attempts.prune"
)

type InitializeRevealMessage struct {
	Identifiers core.IdentifierSet
}

func (InitializeRevealMessage) Type() string { return TypeInitializeReveal }

func (m InitializeRevealMessage) Validate() error {
	if m.Identifiers.Normalize().IsEmpty() {
		return core.NewFieldValidationError("command", "identifiers", "at least one identifier is required")
	}
	return nil
}

type PruneAttemptsMessage struct {
	Policy core.RetentionPolicy
}

func (PruneAttemptsMessage) Type() string { return TypePruneAttempts }

func (m PruneAttemptsMessage) Validate() error {
	if m.Policy.TTL < 0 {
		return core.NewFieldValidationError("command", "ttl", "ttl must be >= 0")
	}
	if m.Policy.RowCap < 0 {
		return core.NewFieldValidationError("command", "row_cap", "row cap must be >= 0")
	}
	if m.Policy.TTL == 0 && m.Policy.RowCap == 0 {
		return core.NewFieldValidationError("command", "policy", "ttl or row cap is required")
	}
	return nil
}
