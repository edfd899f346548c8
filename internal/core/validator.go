package core

import (
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"tenantkit/internal/types"
)

// Validator wraps go-playground/validator with the domain tags:
//
//	slug      types.ValidateSlug
//	role      any known role
//	invitable admin or member
//	weburl    empty, or an absolute http(s) URL
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return types.ValidateSlug(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return types.Role(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("invitable", func(fl validator.FieldLevel) bool {
		return types.Role(fl.Field().String()).Invitable()
	})
	_ = v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
		raw := strings.TrimSpace(fl.Field().String())
		if raw == "" {
			return true
		}
		u, err := url.ParseRequestURI(raw)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})
	return &Validator{v: v}
}

// tagCodes maps a failed tag to the error code reported for it.
var tagCodes = map[string]types.ErrorCode{
	"required":  types.ErrCodeValidationMissingField,
	"email":     types.ErrCodeValidationInvalidEmail,
	"slug":      types.ErrCodeValidationInvalidSlug,
	"role":      types.ErrCodeValidationInvalidRole,
	"invitable": types.ErrCodeValidationInvalidRole,
}

// Struct validates v and reports the first failing field as an AppError
// with field-level details.
func (val *Validator) Struct(v any) error {
	err := val.v.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationBody, "invalid request", err)
	}

	fe := verrs[0]
	code, ok := tagCodes[fe.Tag()]
	if !ok {
		code = types.ErrCodeValidationBody
	}
	details := map[string]any{"field": fe.Field(), "rule": fe.Tag()}
	if fe.Param() != "" {
		details["param"] = fe.Param()
	}
	return types.NewAppErrorWithDetails(code, fieldMessage(fe), nil, details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "slug":
		return fe.Field() + " must be 3-50 lowercase letters, digits or hyphens"
	case "role", "invitable":
		return fe.Field() + " is not an allowed role"
	case "min", "max":
		return fe.Field() + " must have length " + fe.Tag() + " " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// Decode reads the JSON body into dst and validates it.
func (val *Validator) Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := DecodeJSON(w, r, dst); err != nil {
		return err
	}
	return val.Struct(dst)
}
