package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBody = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError lists the request fields that failed validation, keyed by
// their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, field+" "+rule)
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// DecodeEnqueueRequest reads and validates a POST /api/jobs body.
func DecodeEnqueueRequest(r io.Reader) (EnqueueRequest, error) {
	var req EnqueueRequest
	decoder := json.NewDecoder(io.LimitReader(r, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return EnqueueRequest{}, fmt.Errorf("decode request: %w", err)
	}
	req.AssetID = strings.TrimSpace(req.AssetID)
	if err := req.Validate(); err != nil {
		return EnqueueRequest{}, err
	}
	return req, nil
}

// Validate checks the struct tags on the request.
func (r EnqueueRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return err
	}
	fields := make(map[string]string, len(invalid))
	for _, fieldErr := range invalid {
		rule := fieldErr.Tag()
		if param := fieldErr.Param(); param != "" {
			rule += "=" + param
		}
		fields[fieldErr.Field()] = rule
	}
	return &ValidationError{Fields: fields}
}
