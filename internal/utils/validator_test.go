package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"plain", "Code Review", false},
		{"cjk", "代码审查", false},
		{"underscore and hyphen", "my_prompt-v2", false},
		{"empty", "", true},
		{"punctuation", "hello!", true},
		{"slash", "a/b", true},
		{"tab", "a\tb", true},
		{"max length", strings.Repeat("a", MaxTitleLength), false},
		{"too long", strings.Repeat("a", MaxTitleLength+1), true},
		{"runes not bytes", strings.Repeat("题", MaxTitleLength), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTags(t *testing.T) {
	assert.NoError(t, ValidateTags([]string{"go", "后端", "a_b-c"}))
	assert.NoError(t, ValidateTags(nil))
	assert.Error(t, ValidateTags([]string{"two words"}))
	assert.Error(t, ValidateTags([]string{""}))
	assert.Error(t, ValidateTags([]string{strings.Repeat("x", MaxTagLength+1)}))
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("anything goes: !@#"))
	assert.Error(t, ValidateContent(""))
	assert.Error(t, ValidateContent(strings.Repeat("x", MaxContentLength+1)))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "etcpasswd", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "ab", SanitizeFilename(`a<>:"|?*b`))
	assert.Equal(t, "Code Review", SanitizeFilename(" Code Review \n"))
}

func TestIsSafePath(t *testing.T) {
	base := t.TempDir()
	assert.True(t, IsSafePath(base+"/prompt.yaml", base))
	assert.False(t, IsSafePath(base+"/../escape.yaml", base))
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type body struct {
		Name string `json:"name" binding:"required,min=3"`
	}

	tests := []struct {
		name       string
		payload    string
		wantOK     bool
		wantStatus int
	}{
		{"valid", `{"name":"alice"}`, true, http.StatusOK},
		{"missing field", `{}`, false, http.StatusBadRequest},
		{"too short", `{"name":"al"}`, false, http.StatusBadRequest},
		{"malformed", `{"name":`, false, http.StatusBadRequest},
		{"wrong type", `{"name":5}`, false, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			c.Request.Header.Set("Content-Type", "application/json")

			var b body
			ok := BindAndValidate(c, &b)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				assert.Equal(t, tt.wantStatus, w.Code)
				assert.Contains(t, w.Body.String(), "Invalid request parameters")
			}
		})
	}
}
