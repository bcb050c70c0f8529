package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// validate holds the settings and caches for validating request struct
// values.
var validate = validator.New()

// translator is a cache of locale and translation information.
var translator *ut.UniversalTranslator

func init() {
	en := en.New()
	translator = ut.New(en, en)

	lt, _ := translator.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, lt)
}

// Param returns the web call parameters from the request.
func Param(r *http.Request, key string) string {
	params := httptreemux.ContextParams(r.Context())
	return params[key]
}

// Decode reads the body of an HTTP request looking for a JSON document.
// The body is decoded into the provided value, and any validate tags on
// that value's struct fields are then evaluated.
func Decode(r *http.Request, val any) error {
	if err := json.NewDecoder(r.Body).Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := validate.Struct(val); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		lt, _ := translator.GetTranslator("en")

		var fields []string
		for _, verror := range verrors {
			field := fmt.Sprintf("%s:%s", verror.Field(), verror.Translate(lt))
			fields = append(fields, field)
		}

		return &validationError{fields: strings.Join(fields, ", ")}
	}

	return nil
}

// validationError is returned by Decode when a request body fails struct
// validation.
type validationError struct {
	fields string
}

func (v *validationError) Error() string {
	return fmt.Sprintf("field validation error [%s]", v.fields)
}
