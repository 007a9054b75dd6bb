package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ValidationErrorDetail represents the structure of a single validation error.
type ValidationErrorDetail struct {
	Field    string      `json:"field"`
	Message  string      `json:"message"`
	Expected string      `json:"expected"`
	Received interface{} `json:"received"`
}

// ValidationErrorData represents the data field in the validation error response.
type ValidationErrorData struct {
	Errors        []ValidationErrorDetail `json:"errors"`
	Documentation string                  `json:"documentation"`
}

const DocumentationLink = "/swagger/index.html"

const (
	MaxTitleLength   = 100
	MaxContentLength = 10000
	MaxTagLength     = 20
)

var (
	// Letters, digits, CJK, underscore, hyphen and space.
	titlePattern = regexp.MustCompile(`^[\p{L}\p{N}_\- \x{4e00}-\x{9fa5}]+$`)
	// Same as titles without the space.
	tagPattern = regexp.MustCompile(`^[\p{L}\p{N}_\-\x{4e00}-\x{9fa5}]+$`)

	fieldValidator = newFieldValidator()
)

func newFieldValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("prompt_title", func(fl validator.FieldLevel) bool {
		return titlePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("prompt_tag", func(fl validator.FieldLevel) bool {
		return tagPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateTitle checks a prompt title: 1-100 characters of the allowed set.
func ValidateTitle(title string) error {
	return fieldValidator.Var(title, fmt.Sprintf("required,max=%d,prompt_title", MaxTitleLength))
}

// ValidateContent checks prompt content: non-empty, at most 10000 characters.
func ValidateContent(content string) error {
	return fieldValidator.Var(content, fmt.Sprintf("required,max=%d", MaxContentLength))
}

// ValidateTags checks every tag: 1-20 characters of the allowed set.
func ValidateTags(tags []string) error {
	return fieldValidator.Var(tags, fmt.Sprintf("dive,required,max=%d,prompt_tag", MaxTagLength))
}

// SanitizeFilename strips path separators and other characters that are
// unsafe in a file name.
func SanitizeFilename(name string) string {
	for _, unsafe := range []string{"/", "\\", "..", "~", "|", ":", "*", "?", `"`, "<", ">", "\n", "\r"} {
		name = strings.ReplaceAll(name, unsafe, "")
	}
	return strings.TrimSpace(name)
}

// IsSafePath reports whether path resolves inside base.
func IsSafePath(path, base string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// BindAndValidate binds the request body to the given object and validates it.
// If validation fails, it sends a formatted error response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

// BindFormOrJSON binds using the request's content type, so login accepts both
// OAuth2 password-form posts and JSON bodies.
func BindFormOrJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBind(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

func respondBindError(c *gin.Context, err error) {
	var validationErrors []ValidationErrorDetail

	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range errs {
			detail := ValidationErrorDetail{
				Field:    e.Field(),
				Message:  fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", e.Field(), e.Tag()),
				Expected: e.Param(),
				Received: e.Value(),
			}
			if detail.Expected == "" {
				detail.Expected = e.Tag()
			}

			switch e.Tag() {
			case "required":
				detail.Message = fmt.Sprintf("Field '%s' is required", e.Field())
				detail.Expected = "not null"
			case "min":
				detail.Message = fmt.Sprintf("Field '%s' must be at least %s characters long", e.Field(), e.Param())
				detail.Expected = fmt.Sprintf("min length %s", e.Param())
			case "max":
				detail.Message = fmt.Sprintf("Field '%s' must be at most %s characters long", e.Field(), e.Param())
				detail.Expected = fmt.Sprintf("max length %s", e.Param())
			}

			validationErrors = append(validationErrors, detail)
		}
	} else if jsonErr, ok := err.(*json.UnmarshalTypeError); ok {
		validationErrors = append(validationErrors, ValidationErrorDetail{
			Field:    jsonErr.Field,
			Message:  fmt.Sprintf("Field '%s' has invalid type", jsonErr.Field),
			Expected: jsonErr.Type.String(),
			Received: jsonErr.Value,
		})
	} else {
		validationErrors = append(validationErrors, ValidationErrorDetail{
			Field:    "body",
			Message:  "Malformed JSON or invalid request body",
			Expected: "valid JSON",
			Received: "invalid",
		})
	}

	c.JSON(http.StatusBadRequest, Response{
		Status:  http.StatusBadRequest,
		Message: "Invalid request parameters",
		Data: ValidationErrorData{
			Errors:        validationErrors,
			Documentation: DocumentationLink,
		},
	})
}
