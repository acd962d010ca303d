package display

import (
	"context"

	"github.com/goliatone/go-reveal/core"
)

// Library is the secure field rendering collaborator. The controller only
// hands it the init payload and static options.
type Library interface {
	Init(ctx context.Context, payload core.InitPayload, options core.DisplayOptions) (Session, error)
}

type Session interface {
	CreateElement(kind core.FieldKind) (Element, error)
	Destroy() error
}

type Element interface {
	Mount(target string) error
}

// GatewayClient obtains an init payload for an identifier set.
type GatewayClient interface {
	InitializeReveal(ctx context.Context, set core.IdentifierSet) (core.InitPayload, error)
}
