// internal/app/system/inputval/inputval.go
//
// Package inputval validates decoded request bodies with go-playground's
// validator and turns failures into short, user-facing messages.
package inputval

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dalemusser/questhub/internal/domain/models"
)

// FieldError is one failed rule. Field is the JSON name of the input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects validation failures in struct field order.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool { return r != nil && len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if !r.HasErrors() {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Fields maps JSON field name to its first message.
func (r *Result) Fields() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}

var (
	once     sync.Once
	validate *validator.Validate
	trans    ut.Translator
)

func engine() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		english := en.New()
		trans, _ = ut.New(english, english).GetTranslator("en")
		_ = entrans.RegisterDefaultTranslations(validate, trans)

		_ = validate.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			return IsValidHTTPURL(fl.Field().String())
		})
		_ = validate.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return IsValidObjectID(fl.Field().String())
		})
		_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return IsValidRole(fl.Field().String())
		})
		_ = validate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
			_, ok := models.ParsePriority(fl.Field().String())
			return ok
		})
		_ = validate.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
			_, err := models.ParseTaskStatus(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("submissiontype", func(fl validator.FieldLevel) bool {
			return models.IsSubmissionType(fl.Field().String())
		})
	})
	return validate, trans
}

// Validate runs the `validate` struct tags on v. A `label` tag supplies the
// human name used in messages; otherwise the JSON name is used.
func Validate(v any) *Result {
	val, tr := engine()
	res := &Result{}
	err := val.Struct(v)
	if err == nil {
		return res
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	root := reflect.TypeOf(v)
	for root.Kind() == reflect.Pointer {
		root = root.Elem()
	}
	for _, fe := range ves {
		label := labelFor(root, fe.StructNamespace())
		if label == "" {
			label = fe.Field()
		}
		res.Errors = append(res.Errors, FieldError{
			Field:   fe.Field(),
			Message: message(fe, label, tr),
		})
	}
	return res
}

// labelFor walks "Type.Field.Sub" down root and returns the label tag of
// the last field.
func labelFor(root reflect.Type, ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) < 2 {
		return ""
	}
	t := root
	var f reflect.StructField
	for _, p := range parts[1:] {
		if i := strings.IndexByte(p, '['); i >= 0 {
			p = p[:i]
		}
		for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return ""
		}
		var ok bool
		f, ok = t.FieldByName(p)
		if !ok {
			return ""
		}
		t = f.Type
	}
	return f.Tag.Get("label")
}

func message(fe validator.FieldError, label string, tr ut.Translator) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return label + " is required."
	case "email":
		return "A valid email address is required."
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", label, fe.Param())
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "httpurl":
		return label + " must be a valid http or https URL."
	case "objectid":
		return label + " must be a valid ID."
	case "role":
		return label + " must be student, teacher, or admin."
	case "priority":
		return label + " must be Low, Medium, High, or Urgent."
	case "taskstatus":
		return label + " is not a known task status."
	case "submissiontype":
		return label + " must be link, file, code, or github."
	}
	if tr != nil {
		return fe.Translate(tr)
	}
	return fe.Error()
}

// IsValidEmail accepts a bare RFC 5322 address (no display name).
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}

// IsValidHTTPURL accepts absolute http and https URLs with a host.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID reports whether s is a 24-hex-digit ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}

// IsValidRole reports whether s names a known role.
func IsValidRole(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range models.Roles {
		if r == s {
			return true
		}
	}
	return false
}
