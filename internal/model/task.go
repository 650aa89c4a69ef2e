package model

// TaskStatus is the lifecycle status of a Task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskInReview   TaskStatus = "in-review"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task belongs to a Project and may be a "group" whose status is derived
// from its node tasks rather than set directly.
type Task struct {
	ID              string
	ProjectID       string
	Title           string
	Description     string
	Status          TaskStatus
	Tags            []string
	ParentWorkspace *string // non-nil for subtasks
	IsGroup         bool
	Nodes           []string // task ids, only meaningful when IsGroup
}

// DeriveGroupStatus computes a group task's status from its node tasks:
// done iff every node is done; cancelled iff every node is cancelled;
// in-progress if any node is in-progress or in-review; todo otherwise.
func DeriveGroupStatus(nodes []Task) TaskStatus {
	if len(nodes) == 0 {
		return TaskTodo
	}

	allDone := true
	allCancelled := true
	anyActive := false

	for _, n := range nodes {
		if n.Status != TaskDone {
			allDone = false
		}
		if n.Status != TaskCancelled {
			allCancelled = false
		}
		if n.Status == TaskInProgress || n.Status == TaskInReview {
			anyActive = true
		}
	}

	switch {
	case allDone:
		return TaskDone
	case allCancelled:
		return TaskCancelled
	case anyActive:
		return TaskInProgress
	default:
		return TaskTodo
	}
}
