package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskEmissionDrain = "report.emission.drain"

type EmissionDrainPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

func NewEmissionDrainTask(payload EmissionDrainPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmissionDrain, data), nil
}

func ParseEmissionDrainPayload(task *asynq.Task) (EmissionDrainPayload, error) {
	var payload EmissionDrainPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EmissionDrainPayload{}, err
	}
	return payload, nil
}
