package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

// MaxBodyBytes bounds JSON request bodies. A checkout with a full cart and
// both addresses stays far below it.
const MaxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSONBody reads exactly one JSON object into dest, rejecting unknown
// fields, trailing data and bodies over MaxBodyBytes, then runs the validate
// tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := io.LimitReader(r.Body, MaxBodyBytes+1)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	counted := &countingReader{r: body}
	decoder := json.NewDecoder(counted)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if counted.n > MaxBodyBytes {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").WithDetails(map[string]any{"max_bytes": MaxBodyBytes})
		}
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "body is empty"
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": msg})
	}
	if decoder.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body").WithDetails(map[string]any{"error": "body must hold a single JSON object"})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "latitude":
		return "must be a latitude between -90 and 90"
	case "longitude":
		return "must be a longitude between -180 and 180"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid", "uuid4":
		return "must be a valid uuid"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "dive":
		return "has an invalid element"
	}
	return "is invalid"
}
