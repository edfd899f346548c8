package email

import "strings"

// RedactEmail masks an address for logs: "carol@example.com" becomes
// "c***@example.com". Input without "@" is masked entirely.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}
