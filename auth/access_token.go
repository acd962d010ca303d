package auth

import (
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-reveal/core"
)

// AccessToken is the short-lived bearer credential returned by the token
// exchange. Every formatting path renders it redacted.
type AccessToken struct {
	value string
}

func NewAccessToken(raw string) AccessToken {
	return AccessToken{value: strings.TrimSpace(raw)}
}

func (t AccessToken) IsZero() bool {
	return t.value == ""
}

// BearerHeader returns the Authorization header value.
func (t AccessToken) BearerHeader() string {
	return "Bearer " + t.value
}

func (AccessToken) String() string {
	return core.RedactedValue
}

func (AccessToken) GoString() string {
	return "auth.AccessToken{" + core.RedactedValue + "}"
}

func (AccessToken) Format(state fmt.State, _ rune) {
	_, _ = io.WriteString(state, core.RedactedValue)
}

func (AccessToken) MarshalJSON() ([]byte, error) {
	return []byte(`"` + core.RedactedValue + `"`), nil
}
