package config

import "encoding/json"

const redacted = "[REDACTED]"

// Secret holds a credential. Every formatting path (fmt verbs, JSON, zerolog
// Interface fields) prints a placeholder; only Reveal returns the value.
type Secret string

// Reveal returns the raw credential for building outbound auth headers.
func (s Secret) Reveal() string {
	return string(s)
}

// Empty reports whether no credential was configured.
func (s Secret) Empty() bool {
	return s == ""
}

func (s Secret) String() string {
	if s.Empty() {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string {
	return s.String()
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
