// Package validation decodes and checks request bodies.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/wave/errors"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Validator decodes JSON bodies, runs struct tag validation and enforces the
// message token limit.
type Validator struct {
	validate  *validator.Validate
	counter   *TokenCounter
	maxTokens int
}

// New returns a Validator. counter may be nil, which disables token checks.
func New(counter *TokenCounter, maxTokens int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, counter: counter, maxTokens: maxTokens}
}

// Decode reads r's JSON body into dst and validates it. The returned error
// is ready to be written to the client.
func (v *Validator) Decode(r *http.Request, requestID string, dst interface{}) *errors.WaveError {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return errors.NewValidationError(requestID, "Invalid Content-Type header", map[string]interface{}{
				"required_content_type": "application/json",
				"content_type":          ct,
			})
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError(requestID, "Invalid request format", map[string]interface{}{
			"field": "body",
			"error": err.Error(),
		})
	}

	return v.Struct(requestID, dst)
}

// Struct validates dst's tags.
func (v *Validator) Struct(requestID string, dst interface{}) *errors.WaveError {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.NewValidationError(requestID, "Request validation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	fields := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, map[string]string{
			"field": fieldPath(fe),
			"code":  fe.Tag() + "_validation_failed",
		})
	}
	return errors.NewValidationError(requestID, "Request validation failed", map[string]interface{}{
		"fields": fields,
	})
}

// Tokens enforces the configured token limit over texts.
func (v *Validator) Tokens(requestID string, texts ...string) *errors.WaveError {
	if v.counter == nil {
		return nil
	}
	if err := v.counter.Check(v.maxTokens, texts...); err != nil {
		return errors.NewValidationError(requestID, "Token limit exceeded", map[string]interface{}{
			"field": "messages",
			"error": err.Error(),
			"limit": v.maxTokens,
		})
	}
	return nil
}

// fieldPath drops the struct name from the namespace: "messages[0].content".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fmt.Sprint(fe.Field())
}
