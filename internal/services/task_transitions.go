package services

import "taskflow/internal/models"

type TaskAction string

const (
	TaskSubmit   TaskAction = "submit"
	TaskSendBack TaskAction = "send-back"
	TaskApprove  TaskAction = "approve"
	TaskModify   TaskAction = "modify"
)

// Statuses each action may start from. Only modify leaves submitted.
var TaskTransitions = map[TaskAction]map[models.TaskStatus]bool{
	TaskSubmit:   {models.TaskPending: true, models.TaskInProgress: true},
	TaskSendBack: {models.TaskPending: true, models.TaskInProgress: true},
	TaskApprove:  {models.TaskPending: true, models.TaskInProgress: true},
	TaskModify:   {models.TaskPending: true, models.TaskInProgress: true, models.TaskSubmitted: true},
}

// taskActor says who may run an action: the task's developer or its tester.
var taskActor = map[TaskAction]models.EmployeeRole{
	TaskSubmit:   models.RoleDeveloper,
	TaskSendBack: models.RoleTester,
	TaskApprove:  models.RoleTester,
	TaskModify:   models.RoleDeveloper,
}

func canTransition(current models.TaskStatus, action TaskAction) bool {
	froms, ok := TaskTransitions[action]
	if !ok {
		return false
	}
	return froms[current]
}

const defaultApproval = "Approved by tester"

// applyTaskAction mutates t for an action already known to be allowed. text
// is the code for submit/modify and the feedback for send-back/approve.
func applyTaskAction(t *models.Task, action TaskAction, text string) {
	switch action {
	case TaskSubmit:
		t.Code = text
		t.Status = models.TaskInProgress
		t.SubmissionStatus = models.SubmissionPending
	case TaskSendBack:
		t.Status = models.TaskPending
		t.SubmissionStatus = models.SubmissionPending
		if text != "" {
			t.TesterFeedback = &text
		}
	case TaskApprove:
		if text == "" {
			text = defaultApproval
		}
		t.Status = models.TaskSubmitted
		t.SubmissionStatus = models.SubmissionSubmitted
		t.TesterFeedback = &text
	case TaskModify:
		t.Code = text
		t.Status = models.TaskInProgress
		t.SubmissionStatus = models.SubmissionPending
		t.TesterFeedback = nil
	}
}
