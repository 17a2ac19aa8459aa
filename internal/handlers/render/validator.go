package render

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("employeenumber", validateEmployeeNumber)
	validate.RegisterTagNameFunc(useJSONTagNames)
	return validate
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Employee numbers arrive as strings from the frontend but must be positive integers
func validateEmployeeNumber(fl validator.FieldLevel) bool {
	number, err := strconv.ParseInt(fl.Field().String(), 10, 64)
	if err != nil {
		return false
	}
	return number > 0
}
