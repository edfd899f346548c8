package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential such as an invitation token, a database
// URL or a provider API key. It prints and marshals as a placeholder; only
// Unmask yields the value.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the plaintext.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret is set.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
