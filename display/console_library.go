package display

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goliatone/go-reveal/core"
)

// ConsoleLibrary is a Library that writes every lifecycle call to an
// io.Writer. It lets the full flow run from a terminal without a browser.
type ConsoleLibrary struct {
	Out io.Writer

	mu       sync.Mutex
	sessions int
}

func NewConsoleLibrary(out io.Writer) *ConsoleLibrary {
	if out == nil {
		out = io.Discard
	}
	return &ConsoleLibrary{Out: out}
}

func (l *ConsoleLibrary) Init(_ context.Context, payload core.InitPayload, options core.DisplayOptions) (Session, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("init payload is empty")
	}
	l.mu.Lock()
	l.sessions++
	id := l.sessions
	l.mu.Unlock()
	l.printf("init session=%d payload_bytes=%d font=%q\n", id, len(payload), options.Styles.Base.FontSize)
	return &consoleSession{library: l, id: id}, nil
}

func (l *ConsoleLibrary) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.Out, format, args...)
}

type consoleSession struct {
	library   *ConsoleLibrary
	id        int
	mu        sync.Mutex
	destroyed bool
}

func (s *consoleSession) CreateElement(kind core.FieldKind) (Element, error) {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return nil, fmt.Errorf("session %d is destroyed", s.id)
	}
	s.library.printf("create session=%d field=%s\n", s.id, kind)
	return consoleElement{session: s, kind: kind}, nil
}

func (s *consoleSession) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return fmt.Errorf("session %d already destroyed", s.id)
	}
	s.destroyed = true
	s.mu.Unlock()
	s.library.printf("destroy session=%d\n", s.id)
	return nil
}

type consoleElement struct {
	session *consoleSession
	kind    core.FieldKind
}

func (e consoleElement) Mount(target string) error {
	e.session.library.printf("mount session=%d field=%s target=%s\n", e.session.id, e.kind, target)
	return nil
}

var _ Library = (*ConsoleLibrary)(nil)
