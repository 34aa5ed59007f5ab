package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-assistant/internal/feed"
	"todo-assistant/internal/model"
	"todo-assistant/internal/rest/forms"
	"todo-assistant/internal/rest/response"
	"todo-assistant/internal/service"
)

// Task serves the web UI task API.
type Task struct {
	log      *logrus.Logger
	tasks    *service.TaskService
	enhancer *service.EnhancementService
	broker   *feed.Broker
}

func NewTaskHandler(tasks *service.TaskService, enhancer *service.EnhancementService, broker *feed.Broker, log *logrus.Logger) *Task {
	return &Task{
		log:      log,
		tasks:    tasks,
		enhancer: enhancer,
		broker:   broker,
	}
}

func (h *Task) EnrichRoutes(router *gin.Engine) {
	taskRoutes := router.Group("/api/tasks")
	taskRoutes.GET("", h.listTasksAction)
	taskRoutes.POST("", h.createTaskAction)
	taskRoutes.GET("/events", h.streamEventsAction)
	taskRoutes.GET("/:taskID", h.getTaskAction)
	taskRoutes.PATCH("/:taskID", h.updateTaskAction)
	taskRoutes.DELETE("/:taskID", h.deleteTaskAction)
	taskRoutes.POST("/:taskID/enhance", h.enhanceTaskAction)
}

func (h *Task) listTasksAction(c *gin.Context) {
	const op = "handlers.Task.listTasksAction"
	log := h.log.WithField("operation", op)

	tasks, err := h.tasks.ListTasks(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to fetch tasks")
		response.HandleError(err, c)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Task) createTaskAction(c *gin.Context) {
	const op = "handlers.Task.createTaskAction"
	log := h.log.WithField("operation", op)

	form, verr := forms.NewCreateTaskForm().ParseAndValidate(c)
	if verr != nil {
		response.HandleError(verr, c)
		return
	}
	input := form.(*forms.CreateTaskForm)

	task, err := h.tasks.CreateTask(c.Request.Context(), service.TaskInput{
		Title:       input.Title,
		Description: input.Description,
		Source:      model.SourceWeb,
	})
	if err != nil {
		log.WithError(err).Error("failed to create task")
		response.HandleError(err, c)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (h *Task) getTaskAction(c *gin.Context) {
	const op = "handlers.Task.getTaskAction"

	task, err := h.tasks.GetTask(c.Request.Context(), c.Param("taskID"))
	if err != nil {
		h.log.WithField("operation", op).WithError(err).Debug("failed to fetch task")
		response.HandleError(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *Task) updateTaskAction(c *gin.Context) {
	const op = "handlers.Task.updateTaskAction"
	id := c.Param("taskID")
	log := h.log.WithFields(logrus.Fields{"operation": op, "task_id": id})

	form, verr := forms.NewUpdateTaskForm().ParseAndValidate(c)
	if verr != nil {
		response.HandleError(verr, c)
		return
	}
	patch := form.(*forms.UpdateTaskForm).Patch

	task, err := h.tasks.UpdateTask(c.Request.Context(), id, patch)
	if err != nil {
		log.WithError(err).Warn("failed to update task")
		response.HandleError(err, c)
		return
	}
	log.WithFields(logrus.Fields{"enhanced": task.Enhanced, "is_enhancing": task.IsEnhancing}).Info("task updated")
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *Task) deleteTaskAction(c *gin.Context) {
	const op = "handlers.Task.deleteTaskAction"

	if err := h.tasks.DeleteTask(c.Request.Context(), c.Param("taskID")); err != nil {
		h.log.WithField("operation", op).WithError(err).Warn("failed to delete task")
		response.HandleError(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *Task) enhanceTaskAction(c *gin.Context) {
	const op = "handlers.Task.enhanceTaskAction"
	id := c.Param("taskID")
	log := h.log.WithFields(logrus.Fields{"operation": op, "task_id": id})

	task, err := h.enhancer.Enhance(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("failed to enhance task")
		response.HandleError(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}
