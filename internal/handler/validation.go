package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"medsupply/internal/apperror"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var setupOnce sync.Once

// SetupValidator configures gin's validator: JSON field names in errors and
// the dpos/dgte0 tags for decimal amounts
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})

		// decimals are validated through their string form
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})

		_ = v.RegisterValidation("dpos", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && d.IsPositive()
		})
		_ = v.RegisterValidation("dgte0", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && !d.IsNegative()
		})
	})
}

// HandleValidationError answers 400 with per-field details when err came from
// the validator, and with the decoder message otherwise
func HandleValidationError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, apperror.CodeValidation, "Invalid request payload: "+err.Error()))
		return
	}

	details := make([]ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, ValidationDetail{Field: e.Field(), Message: getValidationMessage(e)})
	}
	resp := response.ErrorWithCode(http.StatusBadRequest, apperror.CodeValidation, "Request validation failed")
	resp.Data = details
	c.JSON(http.StatusBadRequest, resp)
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " item(s)"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "dpos":
		return "Must be a positive number"
	case "dgte0":
		return "Must be zero or a positive number"
	default:
		return "Invalid value"
	}
}
