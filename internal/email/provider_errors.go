package email

import (
	"regexp"
	"strings"

	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
)

// Two provider rejections have a recovery path and are recognized by message
// pattern, because the provider reports both as generic 4xx responses:
//
//   - sender verification: the from address is not (or no longer) a verified
//     sender identity, recoverable by retrying from the fallback sender;
//   - sandbox recipient restriction: the account may only deliver to its one
//     verified address, recoverable by redirecting the message there.
var (
	senderRejectedPattern = regexp.MustCompile(
		`(?i)(does not match a verified sender identity|verify your sender identity|from address .* not .*verified)`)
	sandboxRecipientPattern = regexp.MustCompile(
		`(?i)only send (?:testing )?emails to your own (?:verified )?email address \(([^)\s]+@[^)\s]+)\)`)
)

func isSenderRejected(err error) bool {
	return senderRejectedPattern.MatchString(providerMessage(err))
}

// sandboxAllowedRecipient extracts the single recipient a sandboxed account
// is allowed to deliver to, when the error is that rejection.
func sandboxAllowedRecipient(err error) (string, bool) {
	match := sandboxRecipientPattern.FindStringSubmatch(providerMessage(err))
	if len(match) != 2 {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(match[1])), true
}

func providerMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			if body, ok := details["body"].(string); ok {
				msg += " " + body
			}
		}
	}
	return msg
}
