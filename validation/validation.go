// Package validation registers the marketplace's custom binding tags on
// gin's validator and renders validator errors as field details.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	rePhone   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	rePincode = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	reGSTIN   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	rePAN     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	reIFSC    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

var once sync.Once

// Register installs the custom tags once on gin's default validator.
func Register() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		Setup(v)
	})
}

// Setup configures v with JSON field names and the custom tags.
func Setup(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", regexTag(rePhone))
	_ = v.RegisterValidation("pincode", regexTag(rePincode))
	_ = v.RegisterValidation("gstin", regexTag(reGSTIN))
	_ = v.RegisterValidation("pan", regexTag(rePAN))
	_ = v.RegisterValidation("ifsc", regexTag(reIFSC))
}

func regexTag(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	}
}

func IsObjectID(s string) bool { return primitive.IsValidObjectID(s) }

// Details converts validator errors into API field details.
func Details(errs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "objectid":
		return "must be a valid id"
	case "phone":
		return "must be a valid 10-digit mobile number"
	case "pincode":
		return "must be a valid 6-digit pincode"
	case "gstin":
		return "must be a valid GSTIN"
	case "pan":
		return "must be a valid PAN"
	case "ifsc":
		return "must be a valid IFSC code"
	case "url":
		return "must be a valid URL"
	case "alphanum":
		return "must contain only letters and digits"
	case "required_without":
		return "is required when " + lowerFirst(fe.Param()) + " is not provided"
	case "gtfield", "gtefield":
		return "must not be less than " + lowerFirst(fe.Param())
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
