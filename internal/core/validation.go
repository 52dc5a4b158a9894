// AngelaMos | 2026
// validation.go

package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const NonFieldErrors = "non_field_errors"

const (
	MsgInvalidNumber  = "A valid number is required."
	MsgInvalidInteger = "A valid integer is required."
	MsgInvalidString  = "Not a valid string."
	MsgInvalidBool    = "Must be a valid boolean."
	MsgInvalidValue   = "Invalid value."
)

// ValidationError maps a field name to its error messages. Object level
// errors are stored under NonFieldErrors.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ErrOrNil returns nil when no field failed, so callers can return it
// directly.
func (e *ValidationError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func FieldError(field, message string) *ValidationError {
	return NewValidationError().Add(field, message)
}

func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// NewValidator returns a validator that reports fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func FormatValidationError(err error) *ValidationError {
	out := NewValidationError()

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out.Add(NonFieldErrors, err.Error())
	}

	for _, fe := range verrs {
		out.Add(fe.Field(), messageFor(fe))
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min":
		if fe.Kind() == reflect.String && fe.Param() == "1" {
			return "This field may not be blank."
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	case "datetime":
		return "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	case "uuid", "uuid4":
		return "Must be a valid UUID."
	case "eqfield":
		return fmt.Sprintf("The two %s fields didn't match.", fe.Param())
	default:
		return "Invalid value."
	}
}

// DecodeJSON reads a JSON request body into dst. An empty body decodes to
// the zero value.
func DecodeJSON(r *http.Request, dst any) error {
	return decode(json.NewDecoder(r.Body), dst)
}

// ReadBody drains the request body. A body over the server limit yields a
// 413 AppError.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewAppError(
				err,
				"Request body is too large.",
				http.StatusRequestEntityTooLarge,
				"request_too_large",
			)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// UnmarshalJSON is DecodeJSON for a body that was already read.
func UnmarshalJSON(body []byte, dst any) error {
	return decode(json.NewDecoder(bytes.NewReader(body)), dst)
}

func decode(dec *json.Decoder, dst any) error {
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return FieldError(typeErr.Field, typeMismatchMessage(typeErr.Type))
		}

		return NewAppError(
			fmt.Errorf("decode body: %w", err),
			MsgMalformedRequest,
			http.StatusBadRequest,
			"parse_error",
		)
	}
	return nil
}

// typeMismatchMessage names the kind of value a field expected.
func typeMismatchMessage(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return MsgInvalidValue
	}

	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return MsgInvalidNumber
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return MsgInvalidInteger
	case reflect.String:
		return MsgInvalidString
	case reflect.Bool:
		return MsgInvalidBool
	default:
		return MsgInvalidValue
	}
}
