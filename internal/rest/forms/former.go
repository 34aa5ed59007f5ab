package forms

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"todo-assistant/internal/rest/response"
)

// Former parses and validates one request body.
type Former interface {
	ParseAndValidate(c *gin.Context) (Former, response.Error)
}

// readFields decodes a JSON object body keeping each value raw, so forms can
// tell a missing field from a null or wrongly typed one.
func readFields(c *gin.Context) (map[string]json.RawMessage, response.Error) {
	body, err := io.ReadAll(c.Request.Body)
	defer c.Request.Body.Close()
	if err != nil {
		return nil, response.NewInternalError()
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		ve := response.NewValidationError()
		ve.SetError(response.GeneralErrorKey, response.InvalidRequestStructure, "invalid request structure")
		return nil, ve
	}
	return fields, nil
}

func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && string(raw) != "null"
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	var value string
	if err := json.Unmarshal(fields[key], &value); err != nil {
		return "", false
	}
	return value, true
}

func boolField(fields map[string]json.RawMessage, key string) (bool, bool) {
	var value bool
	if err := json.Unmarshal(fields[key], &value); err != nil {
		return false, false
	}
	return value, true
}
