package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScoreContact = "scoring.contact.score"

const TaskEvaluateWorkflows = "workflows.evaluate"

const TaskScoringSweep = "scoring.sweep"

type ScoreContactPayload struct {
	ContactID      string `json:"contactId"`
	OrganizationID string `json:"organizationId"`
}

type EvaluateWorkflowsPayload struct {
	ContactID      string `json:"contactId"`
	OrganizationID string `json:"organizationId"`
	Trigger        string `json:"trigger"`
}

func NewScoreContactTask(payload ScoreContactPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreContact, data), nil
}

func ParseScoreContactPayload(task *asynq.Task) (ScoreContactPayload, error) {
	var payload ScoreContactPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreContactPayload{}, err
	}
	return payload, nil
}

func NewEvaluateWorkflowsTask(payload EvaluateWorkflowsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEvaluateWorkflows, data), nil
}

func ParseEvaluateWorkflowsPayload(task *asynq.Task) (EvaluateWorkflowsPayload, error) {
	var payload EvaluateWorkflowsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EvaluateWorkflowsPayload{}, err
	}
	return payload, nil
}

func NewScoringSweepTask() *asynq.Task {
	return asynq.NewTask(TaskScoringSweep, nil)
}
