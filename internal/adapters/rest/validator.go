package rest

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks request DTOs. Error messages use the json or param name of
// the field rather than the Go name.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()

	tags := []string{"json", "param", "query"}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range tags {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return ""
	})

	return &Validator{validate: validate}
}

// Validate returns the first failing field as a readable message.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		if fe.Param() != "" {
			return fmt.Errorf("field '%s' failed '%s=%s'", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("field '%s' failed '%s'", fe.Field(), fe.Tag())
	}
	return err
}
