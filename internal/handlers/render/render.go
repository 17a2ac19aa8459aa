package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Error codes the API emits in the error.code field
const (
	CodeValidationFailed     = "validation_failed"
	CodeDecodingFailed       = "decoding_failed"
	CodeAuthenticationFailed = "authentication_failed"
	CodeTokenMissing         = "token_missing"
	CodeTokenInvalid         = "token_invalid"
	CodeTokenExpired         = "token_expired"
	CodeRenewalDenied        = "renewal_denied"
	CodeRoleRequired         = "role_required"
	CodeUserNotFound         = "user_not_found"
	CodeInternalError        = "internal_error"
)

var validate = newValidator()

type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Response is the common envelope of every API answer
type Response struct {
	Success      bool       `json:"success"`
	Content      any        `json:"content,omitempty"`
	Error        *ErrorInfo `json:"error,omitempty"`
	TokenExpired bool       `json:"tokenExpired,omitempty"`
	RemoveUser   bool       `json:"removeUser,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

// Success renders {"success":true} with optional content
func Success(w http.ResponseWriter, content any) {
	jsonWithStatus(w, Response{Success: true, Content: content}, http.StatusOK)
}

// Fail renders {"success":false} with the given error code and message
func Fail(w http.ResponseWriter, status int, code string, message string) {
	jsonWithStatus(w, Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	}, status)
}

// FailResponse renders a prefilled failure envelope, for answers that need
// the extra flags (tokenExpired, removeUser)
func FailResponse(w http.ResponseWriter, status int, resp Response) {
	resp.Success = false
	jsonWithStatus(w, resp, status)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	response := Response{
		Success: false,
		Error:   &ErrorInfo{Code: CodeDecodingFailed},
	}

	// Try to provide more specific error message based on error type
	switch err := err.(type) {
	case *json.UnmarshalTypeError:
		response.Error.Message = fmt.Sprintf("Invalid data type for field '%s'", err.Field)
	default:
		response.Error.Message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    CodeValidationFailed,
			Message: "Request validation failed",
			Fields:  make(map[string]string, len(errs)),
		},
	}

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "employeenumber":
			message = "Must be a positive employee number"
		default:
			message = "Invalid value"
		}

		response.Error.Fields[fieldError.Field()] = message
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// jsonWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
