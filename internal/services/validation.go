package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"financefam/internal/core"
)

// Validator checks request structs and renders failures as English sentences.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	eng := en.New()
	uni := ut.New(eng, eng)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	return &Validator{validate: v, trans: trans}
}

// Struct returns nil or a DomainError of kind ErrValidation.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.NewDomainError(core.ErrValidation, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Translate(v.trans))
	}
	return core.NewDomainError(core.ErrValidation, strings.Join(msgs, ", "))
}

var invalidMessages = map[error]string{
	core.ErrInvalidAmount:      "Amount must be greater than zero.",
	core.ErrAmountTooLarge:     "Amount must be at most 100000000000.00.",
	core.ErrBalanceLimit:       "Balance cannot exceed 100000000000.00.",
	core.ErrInvalidDate:        "Date must be a valid calendar date.",
	core.ErrInvalidDay:         "Date must be a valid calendar date.",
	core.ErrInvalidMonth:       "Date must be a valid calendar date.",
	core.ErrInvalidType:        "Type must be income or expense.",
	core.ErrInvalidDirection:   "Type must be deposit or withdraw.",
	core.ErrEmptyUser:          "A user is required.",
	core.ErrEmptyCategory:      "Category is required.",
	core.ErrEmptyTitle:         "Title is required.",
	core.ErrDescriptionTooLong: "Description must be at most 200 characters.",
}

// invalid wraps a core validation sentinel with its user-facing message.
// DomainErrors pass through unchanged.
func invalid(err error) error {
	var de *core.DomainError
	if errors.As(err, &de) {
		return err
	}
	for kind, msg := range invalidMessages {
		if errors.Is(err, kind) {
			return core.NewDomainError(kind, msg)
		}
	}
	return err
}

func isInvalid(err error) bool {
	for kind := range invalidMessages {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
