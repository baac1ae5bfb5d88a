package auth

import (
	"fmt"
	"time"

	"github.com/dept-site-api/internal/domain"
)

func renderCodeMail(intent domain.Intent, code string, ttl time.Duration) (subject, body string) {
	switch intent {
	case domain.IntentForgotPassword:
		subject = "Password reset code"
	default:
		subject = "Account registration code"
	}
	body = fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this message.\n",
		code, int(ttl.Minutes()))
	return subject, body
}
