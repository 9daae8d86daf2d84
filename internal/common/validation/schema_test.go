// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Validate(t *testing.T) {
	schema := NewSchema(map[string]interface{}{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]interface{}{
			"name":  map[string]interface{}{"type": "string", "minLength": 1},
			"count": map[string]interface{}{"type": "integer", "minimum": 0},
		},
	})

	res, err := schema.Validate(map[string]interface{}{"name": "repo", "count": 3})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Error())

	res, err = schema.Validate(map[string]interface{}{"count": -1})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
	assert.True(t, res.HasErrors("count"))
	assert.NotEmpty(t, res.GetErrorMessages())
}

func TestSchema_ValidateStruct(t *testing.T) {
	type doc struct {
		Name string `json:"name"`
	}
	res, err := Validate(map[string]interface{}{
		"type":     "object",
		"required": []string{"name"},
	}, doc{Name: "x"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestSchema_InvalidSchemaReturnsError(t *testing.T) {
	_, err := Validate(map[string]interface{}{"type": 12}, map[string]interface{}{})
	assert.Error(t, err)
}

func TestValidateRepoURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://github.com/octo/repo", true},
		{"http://gitlab.example.com/group/repo", true},
		{"ftp://example.com/repo", false},
		{"github.com/octo/repo", false},
		{"https://", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateRepoURL(tt.raw))
		})
	}
}
