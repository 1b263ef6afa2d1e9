package config

// SensitiveString holds secrets that must never appear in logs or dumps.
// Its String and marshal forms are redacted; Value exposes the raw secret.
type SensitiveString string

const redactedValue = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redactedValue
}

// Value returns the underlying secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SensitiveString) UnmarshalText(text []byte) error {
	*s = SensitiveString(text)
	return nil
}
