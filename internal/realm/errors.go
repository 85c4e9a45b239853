package realm

import (
	"strings"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/tidwall/gjson"
)

func errorMessage(body string) string {
	r := gjson.Parse(body)
	for _, path := range []string{"msg", "error_description", "message", "error"} {
		if v := r.Get(path).String(); v != "" {
			return v
		}
	}
	return strings.TrimSpace(body)
}

// mapError turns a GoTrue error reply into the application taxonomy.
func mapError(status int, body string, signIn bool) error {
	msg := errorMessage(body)
	lower := strings.ToLower(msg)
	code := gjson.Get(body, "error_code").String()

	switch {
	case code == "user_already_exists" || code == "email_exists" ||
		strings.Contains(lower, "already registered") || strings.Contains(lower, "already exists"):
		return apperr.Conflict("An account with this email already exists")
	case code == "weak_password" || code == "email_address_invalid" || code == "validation_failed":
		return apperr.Validation(msg, nil)
	case status == 401 || strings.Contains(lower, "invalid api key"):
		return apperr.ServiceConfiguration("Authentication service rejected the API key", nil)
	case status >= 500 && strings.Contains(lower, "database error"):
		return apperr.ServiceConfiguration("Authentication service database is misconfigured", nil)
	case status == 429 || strings.Contains(lower, "rate limit"):
		return apperr.RateLimited("Too many attempts, please wait a moment and try again")
	case signIn && status == 400:
		if msg == "" {
			msg = "Invalid login credentials"
		}
		return apperr.Auth(msg)
	case status == 400:
		return apperr.Validation(msg, nil)
	}
	return apperr.Service(msg, status)
}
