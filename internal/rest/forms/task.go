package forms

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"

	"todo-assistant/internal/model"
	"todo-assistant/internal/rest/response"
)

// CreateTaskForm is the body of POST /api/tasks.
type CreateTaskForm struct {
	Title       string
	Description string
}

func NewCreateTaskForm() *CreateTaskForm {
	return &CreateTaskForm{}
}

func (f *CreateTaskForm) ParseAndValidate(c *gin.Context) (Former, response.Error) {
	fields, verr := readFields(c)
	if verr != nil {
		return nil, verr
	}

	errs := make(map[string]response.ErrorMessage)
	title, ok := stringField(fields, "title")
	if !ok || strings.TrimSpace(title) == "" {
		errs["title"] = response.ErrorMessage{Code: response.MissedValue, Message: "Title is required and must be a non-empty string"}
	}
	f.Title = strings.TrimSpace(title)

	if present(fields, "description") {
		description, ok := stringField(fields, "description")
		if !ok {
			errs["description"] = response.ErrorMessage{Code: response.InvalidValue, Message: "description must be a string"}
		}
		f.Description = strings.TrimSpace(description)
	}

	if len(errs) > 0 {
		return nil, response.NewValidationError(errs)
	}
	return f, nil
}

// UpdateTaskForm is the body of PATCH /api/tasks/:id.
type UpdateTaskForm struct {
	Patch model.TaskPatch
}

func NewUpdateTaskForm() *UpdateTaskForm {
	return &UpdateTaskForm{}
}

func (f *UpdateTaskForm) ParseAndValidate(c *gin.Context) (Former, response.Error) {
	fields, verr := readFields(c)
	if verr != nil {
		return nil, verr
	}

	errs := make(map[string]response.ErrorMessage)

	if _, ok := fields["title"]; ok {
		title, ok := stringField(fields, "title")
		if !ok || strings.TrimSpace(title) == "" {
			errs["title"] = response.ErrorMessage{Code: response.InvalidValue, Message: "Title must be a non-empty string"}
		} else {
			title = strings.TrimSpace(title)
			f.Patch.Title = &title
		}
	}

	if _, ok := fields["description"]; ok {
		description, isString := stringField(fields, "description")
		if !isString {
			description = ""
		}
		description = strings.TrimSpace(description)
		f.Patch.Description = &description
	}

	if _, ok := fields["isCompleted"]; ok {
		completed, ok := boolField(fields, "isCompleted")
		if !ok {
			errs["isCompleted"] = response.ErrorMessage{Code: response.InvalidValue, Message: "isCompleted must be a boolean"}
		} else {
			f.Patch.IsCompleted = &completed
		}
	}

	for name, dst := range map[string]**bool{"enhanced": &f.Patch.Enhanced, "isEnhancing": &f.Patch.IsEnhancing} {
		if _, ok := fields[name]; !ok {
			continue
		}
		value, ok := boolField(fields, name)
		if !ok {
			errs[name] = response.ErrorMessage{Code: response.InvalidValue, Message: name + " must be a boolean"}
			continue
		}
		*dst = &value
	}

	if present(fields, "enhancedDescription") {
		description, ok := stringField(fields, "enhancedDescription")
		if !ok {
			errs["enhancedDescription"] = response.ErrorMessage{Code: response.InvalidValue, Message: "enhancedDescription must be a string"}
		} else {
			f.Patch.EnhancedDescription = &description
		}
	}

	if _, ok := fields["enhancementSteps"]; ok {
		var steps []string
		if present(fields, "enhancementSteps") {
			if err := json.Unmarshal(fields["enhancementSteps"], &steps); err != nil {
				errs["enhancementSteps"] = response.ErrorMessage{Code: response.InvalidValue, Message: "enhancementSteps must be an array of strings"}
			}
		}
		if steps == nil {
			steps = []string{}
		}
		f.Patch.EnhancementSteps = &steps
	}

	if len(errs) > 0 {
		return nil, response.NewValidationError(errs)
	}
	return f, nil
}
