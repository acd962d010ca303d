package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	RevealPayloadType = "reveal"
	DefaultAuditData  = "demo"
)

const (
	IdentifierKindInstrumentID = "instrument_id"
	IdentifierKindRecordID     = "record_id"
	IdentifierKindRecordAlias  = "record_alias"
	IdentifierKindAliases      = "aliases"
)

// Aliases decodes from either a JSON array of strings or a single comma
// separated string. Entries are trimmed and empty entries are dropped.
type Aliases []string

func (a *Aliases) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = nil
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*a = SplitAliases(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return err
	}
	*a = normalizeAliases(list)
	return nil
}

// SplitAliases splits a comma separated alias list.
func SplitAliases(raw string) Aliases {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return normalizeAliases(strings.Split(raw, ","))
}

func normalizeAliases(values []string) Aliases {
	if len(values) == 0 {
		return nil
	}
	out := make(Aliases, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IdentifierSet names the stored instrument to reveal. Any subset of the
// fields may be supplied; only non-empty fields are forwarded upstream.
type IdentifierSet struct {
	InstrumentID string  `json:"instrumentId,omitempty"`
	RecordID     string  `json:"recordId,omitempty"`
	RecordAlias  string  `json:"recordAlias,omitempty"`
	Aliases      Aliases `json:"aliases,omitempty"`
}

func (s IdentifierSet) Normalize() IdentifierSet {
	return IdentifierSet{
		InstrumentID: strings.TrimSpace(s.InstrumentID),
		RecordID:     strings.TrimSpace(s.RecordID),
		RecordAlias:  strings.TrimSpace(s.RecordAlias),
		Aliases:      normalizeAliases(s.Aliases),
	}
}

func (s IdentifierSet) IsEmpty() bool {
	return len(s.Kinds()) == 0
}

// Kinds lists which identifier fields are present, in a stable order.
func (s IdentifierSet) Kinds() []string {
	normalized := s.Normalize()
	kinds := make([]string, 0, 4)
	if normalized.InstrumentID != "" {
		kinds = append(kinds, IdentifierKindInstrumentID)
	}
	if normalized.RecordID != "" {
		kinds = append(kinds, IdentifierKindRecordID)
	}
	if normalized.RecordAlias != "" {
		kinds = append(kinds, IdentifierKindRecordAlias)
	}
	if len(normalized.Aliases) > 0 {
		kinds = append(kinds, IdentifierKindAliases)
	}
	return kinds
}

// ParseIdentifierSet never fails: empty, malformed or non-object bodies yield
// an empty set so that validation is left to the upstream service.
func ParseIdentifierSet(body []byte) IdentifierSet {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &fields); err != nil {
		return IdentifierSet{}
	}
	set := IdentifierSet{
		InstrumentID: rawString(fields["instrumentId"]),
		RecordID:     rawString(fields["recordId"]),
		RecordAlias:  rawString(fields["recordAlias"]),
	}
	if raw, ok := fields["aliases"]; ok {
		var aliases Aliases
		if err := json.Unmarshal(raw, &aliases); err == nil {
			set.Aliases = aliases
		}
	}
	return set.Normalize()
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

// RevealPayload is the body sent to the upstream init endpoint.
type RevealPayload struct {
	Type         string   `json:"type"`
	AuditData    string   `json:"auditData"`
	InstrumentID string   `json:"instrumentId,omitempty"`
	RecordID     string   `json:"recordId,omitempty"`
	RecordAlias  string   `json:"recordAlias,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
}

func NewRevealPayload(set IdentifierSet, auditData string) RevealPayload {
	normalized := set.Normalize()
	auditData = strings.TrimSpace(auditData)
	if auditData == "" {
		auditData = DefaultAuditData
	}
	payload := RevealPayload{
		Type:         RevealPayloadType,
		AuditData:    auditData,
		InstrumentID: normalized.InstrumentID,
		RecordID:     normalized.RecordID,
		RecordAlias:  normalized.RecordAlias,
	}
	if len(normalized.Aliases) > 0 {
		payload.Aliases = append([]string(nil), normalized.Aliases...)
	}
	return payload
}

// InitPayload is the upstream init response. It is opaque to this module
// and passed through verbatim.
type InitPayload = json.RawMessage

type FieldKind string

const (
	FieldCardNumber     FieldKind = "CardNumber"
	FieldExpiryMonth    FieldKind = "ExpiryMonth"
	FieldExpiryYear     FieldKind = "ExpiryYear"
	FieldSecurityCode   FieldKind = "SecurityCode"
	FieldCardHolderName FieldKind = "CardHolderName"
)

type FieldMountSpec struct {
	Kind   FieldKind
	Target string
}

// DefaultFieldMounts returns the five revealed fields in mount order.
func DefaultFieldMounts() []FieldMountSpec {
	return []FieldMountSpec{
		{Kind: FieldCardNumber, Target: "#card-number"},
		{Kind: FieldExpiryMonth, Target: "#expiry-month"},
		{Kind: FieldExpiryYear, Target: "#expiry-year"},
		{Kind: FieldSecurityCode, Target: "#security-code"},
		{Kind: FieldCardHolderName, Target: "#card-holder-name"},
	}
}

type DisplayStyle struct {
	FontSize   string `json:"fontSize,omitempty"`
	FontFamily string `json:"fontFamily,omitempty"`
}

type DisplayStyles struct {
	Base DisplayStyle `json:"base"`
}

type DisplayCopy struct {
	Loading string `json:"loading,omitempty"`
}

type DisplayTranslations struct {
	Base DisplayCopy `json:"base"`
}

// DisplayOptions is the static styling and copy handed to the display
// library together with the init payload.
type DisplayOptions struct {
	Styles       DisplayStyles       `json:"styles"`
	Translations DisplayTranslations `json:"translations"`
}

func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{
		Styles: DisplayStyles{
			Base: DisplayStyle{
				FontSize:   "16px",
				FontFamily: "ui-sans-serif, system-ui, 'Helvetica Neue', Arial, sans-serif",
			},
		},
		Translations: DisplayTranslations{
			Base: DisplayCopy{Loading: "Loading…"},
		},
	}
}
