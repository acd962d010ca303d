package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-reveal/core"
)

type stubInitializer struct {
	got     core.IdentifierSet
	payload core.InitPayload
	err     error
}

func (s *stubInitializer) InitializeReveal(_ context.Context, set core.IdentifierSet) (core.InitPayload, error) {
	s.got = set
	return s.payload, s.err
}

type stubPruner struct {
	policy  core.RetentionPolicy
	deleted int
	err     error
}

func (s *stubPruner) Prune(_ context.Context, policy core.RetentionPolicy) (int, error) {
	s.policy = policy
	return s.deleted, s.err
}

func TestInitializeRevealCommand_StoresPayload(t *testing.T) {
	initializer := &stubInitializer{payload: core.InitPayload(`{"data":"x"}`)}
	cmd := NewInitializeRevealCommand(initializer)
	collector := gocmd.NewResult[core.InitPayload]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, InitializeRevealMessage{Identifiers: core.IdentifierSet{RecordID: "rec_1"}})
	if err != nil {
		t.Fatalf("execute initialize: %v", err)
	}
	if initializer.got.RecordID != "rec_1" {
		t.Fatalf("unexpected identifiers %+v", initializer.got)
	}
	result, ok := collector.Load()
	if !ok || string(result) != `{"data":"x"}` {
		t.Fatalf("expected stored payload, got %q", result)
	}
}

func TestInitializeRevealCommand_ReturnsGatewayError(t *testing.T) {
	upstream := core.NewUpstreamAuthError(401, "denied")
	cmd := NewInitializeRevealCommand(&stubInitializer{err: upstream})
	err := cmd.Execute(context.Background(), InitializeRevealMessage{Identifiers: core.IdentifierSet{RecordID: "rec_1"}})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestPruneAttemptsCommand_StoresDeletedCount(t *testing.T) {
	pruner := &stubPruner{deleted: 7}
	cmd := NewPruneAttemptsCommand(pruner)
	collector := gocmd.NewResult[int]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	policy := core.RetentionPolicy{TTL: time.Hour, RowCap: 100}
	if err := cmd.Execute(ctx, PruneAttemptsMessage{Policy: policy}); err != nil {
		t.Fatalf("execute prune: %v", err)
	}
	if pruner.policy != policy {
		t.Fatalf("unexpected policy %+v", pruner.policy)
	}
	if deleted, ok := collector.Load(); !ok || deleted != 7 {
		t.Fatalf("expected deleted count 7, got %d", deleted)
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	cases := map[string]interface{ Validate() error }{
		"empty identifiers": InitializeRevealMessage{Identifiers: core.IdentifierSet{RecordID: "  "}},
		"empty policy":      PruneAttemptsMessage{},
		"negative ttl":      PruneAttemptsMessage{Policy: core.RetentionPolicy{TTL: -time.Second}},
		"negative row cap":  PruneAttemptsMessage{Policy: core.RetentionPolicy{RowCap: -1}},
	}
	for name, msg := range cases {
		err := msg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", name, err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("%s: expected validation category, got %q", name, rich.Category)
		}
		if rich.TextCode != core.ErrorBadInput {
			t.Fatalf("%s: expected %q text code, got %q", name, core.ErrorBadInput, rich.TextCode)
		}
	}

	valid := InitializeRevealMessage{Identifiers: core.IdentifierSet{Aliases: core.Aliases{"a"}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
}

func TestCommands_NilDependencyReturnsRichError(t *testing.T) {
	var initialize *InitializeRevealCommand
	var prune *PruneAttemptsCommand
	for name, err := range map[string]error{
		"initialize": initialize.Execute(context.Background(), InitializeRevealMessage{}),
		"prune":      NewPruneAttemptsCommand(nil).Execute(context.Background(), PruneAttemptsMessage{}),
		"nil prune":  prune.Execute(context.Background(), PruneAttemptsMessage{}),
	} {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
			t.Fatalf("%s: expected internal dependency error, got %v", name, err)
		}
	}
}
