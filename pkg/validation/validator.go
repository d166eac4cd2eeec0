package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

const (
	phoneTag  = "phone"
	phoneText = "{0} must be a valid phone number"
)

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)

// Validator wraps go-playground/validator with English messages keyed by JSON field names.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// Default returns the process-wide validator.
func Default() *Validator {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// New constructs a validator with the custom tags registered.
func New() *Validator {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")

	v := validator.New()
	_ = enTranslations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(phoneTag, func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || phoneRegex.MatchString(value)
	})
	_ = v.RegisterTranslation(phoneTag, trans,
		func(t ut.Translator) error { return t.Add(phoneTag, phoneText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(phoneTag, fe.Field())
			return s
		},
	)

	return &Validator{validate: v, translator: trans}
}

// Struct validates s and returns a VALIDATION_ERROR carrying one detail per failing field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	fields := v.Fields(err)
	if len(fields) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "validation failed")
	}
	return appErrors.Validation("validation failed", fields, err)
}

// Fields translates validator errors into field-level details.
func (v *Validator) Fields(err error) []appErrors.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, appErrors.FieldError{
			Field:   fieldPath(fe),
			Message: fe.Translate(v.translator),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace, e.g. "Req.address.city" -> "address.city".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}
