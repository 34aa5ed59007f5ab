package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-assistant/internal/model"
	"todo-assistant/internal/rest/response"
	"todo-assistant/internal/service"
)

// chatListLimit caps how many tasks the reasoning agent sees at once.
const chatListLimit = 50

// Todo serves the task endpoints the reasoning agent calls on behalf of a chat user.
type Todo struct {
	log   *logrus.Logger
	tasks *service.TaskService
}

func NewTodoHandler(tasks *service.TaskService, log *logrus.Logger) *Todo {
	return &Todo{log: log, tasks: tasks}
}

func (h *Todo) EnrichRoutes(router *gin.Engine) {
	todoRoutes := router.Group("/api/todos")
	todoRoutes.POST("/list", h.listAction)
	todoRoutes.POST("/create", h.createAction)
	todoRoutes.POST("/update", h.updateAction)
	todoRoutes.POST("/delete", h.deleteAction)
}

type todoRequest struct {
	PhoneNumber string  `json:"phoneNumber"`
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	Source      string  `json:"source"`
}

// todoView is the trimmed task shape returned by list.
type todoView struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	Completed           bool    `json:"completed"`
	Enhanced            bool    `json:"enhanced"`
	EnhancedDescription *string `json:"enhancedDescription"`
	CreatedAt           string  `json:"createdAt"`
}

func (h *Todo) bind(c *gin.Context, needID bool) (*todoRequest, bool) {
	var req todoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request structure"})
		return nil, false
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "phoneNumber is required"})
		return nil, false
	}
	if needID && strings.TrimSpace(req.ID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "id is required"})
		return nil, false
	}
	return &req, true
}

func (h *Todo) listAction(c *gin.Context) {
	const op = "handlers.Todo.listAction"

	if _, ok := h.bind(c, false); !ok {
		return
	}
	tasks, err := h.tasks.ListRecent(c.Request.Context(), chatListLimit)
	if err != nil {
		h.log.WithField("operation", op).WithError(err).Error("failed to fetch todos")
		response.HandleChatError(err, c)
		return
	}

	todos := make([]todoView, 0, len(tasks))
	for _, t := range tasks {
		todos = append(todos, todoView{
			ID:                  t.ID,
			Title:               t.Title,
			Description:         t.Description,
			Completed:           t.IsCompleted,
			Enhanced:            t.Enhanced,
			EnhancedDescription: t.EnhancedDescription,
			CreatedAt:           t.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(todos), "todos": todos})
}

func (h *Todo) createAction(c *gin.Context) {
	const op = "handlers.Todo.createAction"

	req, ok := h.bind(c, false)
	if !ok {
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "title is required"})
		return
	}

	source := model.Source(req.Source)
	if source == "" {
		source = model.SourceWhatsApp
	}
	input := service.TaskInput{Title: *req.Title, Source: source}
	if req.Description != nil {
		input.Description = *req.Description
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), input)
	if err != nil {
		h.log.WithFields(logrus.Fields{"operation": op, "phone": req.PhoneNumber}).WithError(err).Error("failed to create task")
		response.HandleChatError(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Task created successfully", "todo": task})
}

func (h *Todo) updateAction(c *gin.Context) {
	const op = "handlers.Todo.updateAction"

	req, ok := h.bind(c, true)
	if !ok {
		return
	}
	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.Completed,
	}

	task, err := h.tasks.UpdateTask(c.Request.Context(), req.ID, patch)
	if err != nil {
		h.log.WithFields(logrus.Fields{"operation": op, "task_id": req.ID}).WithError(err).Warn("failed to update task")
		response.HandleChatError(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Task updated successfully", "todo": task})
}

func (h *Todo) deleteAction(c *gin.Context) {
	const op = "handlers.Todo.deleteAction"

	req, ok := h.bind(c, true)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(c.Request.Context(), req.ID); err != nil {
		h.log.WithFields(logrus.Fields{"operation": op, "task_id": req.ID}).WithError(err).Warn("failed to delete task")
		response.HandleChatError(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Task deleted successfully"})
}
