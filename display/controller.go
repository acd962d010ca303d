package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
)

const loggerName = "reveal.display"

// Controller owns at most one live display session. Each controller is
// independent; there is no shared session state between instances.
type Controller struct {
	client    GatewayClient
	library   Library
	options   core.DisplayOptions
	mounts    []core.FieldMountSpec
	logger    core.Logger
	listeners []StateListener

	mu        sync.Mutex
	state     State
	session   Session
	lastError string
}

func NewController(client GatewayClient, library Library, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, fmt.Errorf("display: gateway client is required")
	}
	if library == nil {
		return nil, fmt.Errorf("display: library is required")
	}
	b := builder{
		options: core.DefaultDisplayOptions(),
		mounts:  core.DefaultFieldMounts(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&b)
	}
	if len(b.mounts) == 0 {
		return nil, fmt.Errorf("display: at least one field mount is required")
	}

	_, logger := glog.Resolve(loggerName, b.loggerProvider, b.logger)
	return &Controller{
		client:    client,
		library:   library,
		options:   b.options,
		mounts:    b.mounts,
		logger:    glog.Ensure(logger),
		listeners: b.listeners,
		state:     StateIdle,
	}, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the message of the last failed attempt. It is cleared
// when a new attempt starts.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// CanInitialize reports whether Initialize would start an attempt for set.
func (c *Controller) CanInitialize(set core.IdentifierSet) bool {
	if set.Normalize().IsEmpty() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateInitializing && c.state != StateDisposed
}

// Initialize tears down the held session, requests a fresh init payload and
// mounts every configured field. Failures leave the controller in StateError
// without a session and return a client init error.
func (c *Controller) Initialize(ctx context.Context, set core.IdentifierSet) error {
	if ctx == nil {
		ctx = context.Background()
	}
	set = set.Normalize()

	c.mu.Lock()
	switch c.state {
	case StateDisposed:
		c.mu.Unlock()
		return ErrControllerDisposed
	case StateInitializing:
		c.mu.Unlock()
		return ErrInitializationInProgress
	}
	if set.IsEmpty() {
		c.mu.Unlock()
		return ErrNoIdentifiers
	}
	from, err := c.transitionLocked(StateInitializing)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	previous := c.session
	c.session = nil
	c.lastError = ""
	c.mu.Unlock()
	c.notify(from, StateInitializing)

	c.destroyQuietly(previous, "previous")

	session, initErr := c.open(ctx, set)

	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		c.destroyQuietly(session, "late")
		return ErrControllerDisposed
	}
	if initErr != nil {
		c.lastError = initErr.Message
		from, _ = c.transitionLocked(StateError)
		c.mu.Unlock()
		c.logger.WithContext(ctx).Warn("display session initialization failed",
			"text_code", initErr.TextCode,
			"error", initErr.Message,
		)
		c.notify(from, StateError)
		return initErr
	}
	c.session = session
	from, _ = c.transitionLocked(StateActive)
	c.mu.Unlock()
	c.logger.WithContext(ctx).Info("display session active", "fields", len(c.mounts))
	c.notify(from, StateActive)
	return nil
}

// Dispose destroys the held session and moves to StateDisposed. Later calls
// are no-ops. An attempt still in flight destroys its session on return.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return
	}
	session := c.session
	c.session = nil
	from, _ := c.transitionLocked(StateDisposed)
	c.mu.Unlock()
	c.notify(from, StateDisposed)
	c.destroyQuietly(session, "dispose")
}

func (c *Controller) open(ctx context.Context, set core.IdentifierSet) (Session, *goerrors.Error) {
	payload, err := c.client.InitializeReveal(ctx, set)
	if err != nil {
		return nil, toClientInitError(err, map[string]any{"step": "gateway"})
	}

	var session Session
	err = guard(func() error {
		created, initErr := c.library.Init(ctx, payload, c.options)
		session = created
		return initErr
	})
	if err == nil && session == nil {
		err = errors.New("display library returned no session")
	}
	if err != nil {
		c.destroyQuietly(session, "failed init")
		return nil, toClientInitError(err, map[string]any{"step": "init"})
	}

	for _, mount := range c.mounts {
		err := guard(func() error {
			element, createErr := session.CreateElement(mount.Kind)
			if createErr != nil {
				return createErr
			}
			if element == nil {
				return fmt.Errorf("display library returned no element for %s", mount.Kind)
			}
			return element.Mount(mount.Target)
		})
		if err != nil {
			c.destroyQuietly(session, "failed mount")
			return nil, toClientInitError(err, map[string]any{
				"step":   "mount",
				"field":  string(mount.Kind),
				"target": mount.Target,
			})
		}
	}
	return session, nil
}

func (c *Controller) transitionLocked(next State) (State, error) {
	current := c.state
	if err := validateTransition(current, next); err != nil {
		return current, err
	}
	c.state = next
	return current, nil
}

func (c *Controller) notify(from, to State) {
	for _, listener := range c.listeners {
		listener(from, to)
	}
}

// destroyQuietly tears a session down best-effort. Errors and panics are
// logged and swallowed.
func (c *Controller) destroyQuietly(session Session, reason string) {
	if session == nil {
		return
	}
	if err := guard(session.Destroy); err != nil {
		c.logger.Debug("display session destroy ignored", "reason", reason, "error", err.Error())
	}
}

func guard(fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("display library panic: %v", recovered)
		}
	}()
	return fn()
}

func toClientInitError(err error, metadata map[string]any) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == core.ErrorClientInitFailed {
		return rich
	}
	message := strings.TrimSpace(err.Error())
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		message = rich.Message
	}
	return core.NewClientInitError(err, message, metadata)
}
