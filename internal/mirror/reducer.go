// Package mirror keeps a client-side copy of the task list in step with the
// server while local edits are applied optimistically.
package mirror

import (
	"todo-assistant/internal/feed"
	"todo-assistant/internal/model"
)

// Update is one change to the local list. The concrete types below are the
// only implementations.
type Update interface {
	isUpdate()
}

// OptimisticCreate prepends a placeholder that carries a temporary id.
type OptimisticCreate struct{ Task model.Task }

// OptimisticPatch merges fields into a task before the server answers.
type OptimisticPatch struct {
	ID    string
	Patch model.TaskPatch
}

// OptimisticDelete removes a task before the server answers.
type OptimisticDelete struct{ ID string }

// Confirmed installs the server's copy of a task. TempID is set when the
// copy answers an optimistic create.
type Confirmed struct {
	TempID string
	Task   model.Task
}

// RollbackCreate drops a placeholder whose create failed.
type RollbackCreate struct{ TempID string }

// RestoreTask puts back the pre-patch copy of a task after a failed update.
type RestoreTask struct{ Task model.Task }

// RestoreList puts back the whole list as it was before a failed delete.
type RestoreList struct{ Tasks []model.Task }

// PushInsert, PushUpdate and PushDelete come from the server change feed.
type PushInsert struct{ Task model.Task }

type PushUpdate struct{ Task model.Task }

type PushDelete struct{ ID string }

func (OptimisticCreate) isUpdate() {}
func (OptimisticPatch) isUpdate()  {}
func (OptimisticDelete) isUpdate() {}
func (Confirmed) isUpdate()        {}
func (RollbackCreate) isUpdate()   {}
func (RestoreTask) isUpdate()      {}
func (RestoreList) isUpdate()      {}
func (PushInsert) isUpdate()       {}
func (PushUpdate) isUpdate()       {}
func (PushDelete) isUpdate()       {}

// FromEvent converts a feed event into the matching push update.
func FromEvent(ev feed.Event) Update {
	switch ev.Type {
	case feed.EventInsert:
		return PushInsert{Task: ev.Task}
	case feed.EventUpdate:
		return PushUpdate{Task: ev.Task}
	case feed.EventDelete:
		return PushDelete{ID: ev.Task.ID}
	default:
		return nil
	}
}

// Reduce returns the list with u applied. The input slice is not modified.
// Every update is keyed by id, so replaying one leaves the list unchanged.
func Reduce(tasks []model.Task, u Update) []model.Task {
	out := clone(tasks)

	switch u := u.(type) {
	case OptimisticCreate:
		if indexOf(out, u.Task.ID) >= 0 {
			return out
		}
		return prepend(out, u.Task)

	case OptimisticPatch:
		if i := indexOf(out, u.ID); i >= 0 {
			// UpdatedAt stays the server's so later pushes are not mistaken for stale.
			out[i] = u.Patch.ApplyTo(out[i])
		}
		return out

	case OptimisticDelete:
		return remove(out, u.ID)

	case Confirmed:
		return confirm(out, u)

	case RollbackCreate:
		return remove(out, u.TempID)

	case RestoreTask:
		i := indexOf(out, u.Task.ID)
		if i < 0 {
			return out
		}
		// A server copy installed since the patch wins over the snapshot.
		if out[i].UpdatedAt.After(u.Task.UpdatedAt) {
			return out
		}
		out[i] = u.Task
		return out

	case RestoreList:
		return clone(u.Tasks)

	case PushInsert:
		if indexOf(out, u.Task.ID) >= 0 {
			return out
		}
		return prepend(out, u.Task)

	case PushUpdate:
		return replaceIfFresh(out, u.Task)

	case PushDelete:
		return remove(out, u.ID)

	default:
		return out
	}
}

func confirm(tasks []model.Task, u Confirmed) []model.Task {
	if u.TempID == "" || u.TempID == u.Task.ID {
		return replaceIfFresh(tasks, u.Task)
	}

	tempIdx := indexOf(tasks, u.TempID)
	realIdx := indexOf(tasks, u.Task.ID)
	switch {
	case tempIdx >= 0 && realIdx >= 0:
		// The insert push beat the create response.
		tasks = replaceIfFresh(tasks, u.Task)
		return remove(tasks, u.TempID)
	case tempIdx >= 0:
		tasks[tempIdx] = u.Task
		return tasks
	case realIdx >= 0:
		return replaceIfFresh(tasks, u.Task)
	default:
		// Placeholder removed locally before the server answered.
		return tasks
	}
}

func replaceIfFresh(tasks []model.Task, task model.Task) []model.Task {
	i := indexOf(tasks, task.ID)
	if i < 0 {
		return tasks
	}
	if task.UpdatedAt.Before(tasks[i].UpdatedAt) {
		return tasks
	}
	tasks[i] = task
	return tasks
}

func indexOf(tasks []model.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func prepend(tasks []model.Task, task model.Task) []model.Task {
	return append([]model.Task{task}, tasks...)
}

func remove(tasks []model.Task, id string) []model.Task {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks
	}
	return append(tasks[:i], tasks[i+1:]...)
}

func clone(tasks []model.Task) []model.Task {
	if tasks == nil {
		return nil
	}
	return append([]model.Task(nil), tasks...)
}
