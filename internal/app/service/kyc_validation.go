package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/storage"
	"github.com/ikkim/gigmarket-backend/pkg/util"
)

// errcodeTag names the struct tag holding the error code reported when a
// field fails validation.
const errcodeTag = "errcode"

var (
	documentTypePattern = regexp.MustCompile(`^[A-Z0-9_]{2,64}$`)

	inputValidator     *validator.Validate
	inputValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	inputValidatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("sha256hex", func(fl validator.FieldLevel) bool {
			normalized, ok := util.NormalizeSHA256Hex(fl.Field().String())
			return ok && normalized == fl.Field().String()
		})
		_ = v.RegisterValidation("objectkey", func(fl validator.FieldLevel) bool {
			return storage.ValidObjectKey(fl.Field().String())
		})
		_ = v.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
			return documentTypePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("filename", func(fl validator.FieldLevel) bool {
			name := fl.Field().String()
			if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
				return false
			}
			for _, r := range name {
				if r < 0x20 || r == 0x7f {
					return false
				}
			}
			return true
		})
		inputValidator = v
	})
	return inputValidator
}

// validateInput runs struct validation and converts the first failing field
// into an invalid_input AppError carrying that field's errcode.
func validateInput(input interface{}) error {
	err := getValidator().Struct(input)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return apperrors.Internal(err)
	}

	fe := validationErrs[0]
	code := apperrors.ValidationInvalidInput
	t := reflect.TypeOf(input)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if field, ok := t.FieldByName(fe.StructField()); ok {
		if tagged := field.Tag.Get(errcodeTag); tagged != "" {
			code = tagged
		}
	}
	return apperrors.InvalidInput(code, fe.Field()+" is invalid ("+fe.Tag()+")")
}
