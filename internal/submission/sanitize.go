package submission

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	messagePolicyOnce sync.Once
	messagePolicy     *bluemonday.Policy
)

func messageSanitizer() *bluemonday.Policy {
	messagePolicyOnce.Do(func() {
		messagePolicy = bluemonday.UGCPolicy()
	})
	return messagePolicy
}

// SanitizeMessage strips unsafe markup from the sender's custom message,
// keeping basic formatting. Plain text line breaks become <br>.
func SanitizeMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}
	if !strings.Contains(message, "<") {
		message = strings.ReplaceAll(message, "\r\n", "\n")
		message = strings.ReplaceAll(message, "\n", "<br>")
	}
	return messageSanitizer().Sanitize(message)
}
