package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dept-site-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom tags are registered in
// init before the first call to Struct.
var v = validator.New()

func init() {
	// role: value must parse as a domain.Role.
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseRole(fl.Field().String())
		return err == nil
	})
	// intent: value must be a supported verification intent.
	_ = v.RegisterValidation("intent", func(fl validator.FieldLevel) bool {
		return domain.Intent(fl.Field().String()).Valid()
	})
	// code: six ASCII digits.
	_ = v.RegisterValidation("code", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 6 {
			return false
		}
		for i := 0; i < len(s); i++ {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
		return true
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error wrapping domain.ErrBadRequest, or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrBadRequest)
	}
	return nil
}
