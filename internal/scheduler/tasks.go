package scheduler

import (
	"encoding/json"
	"strings"

	"github.com/hibiken/asynq"
)

const TaskTrialClosure = "trials.close"

const TaskSiteGeocode = "sites.geocode"

type TrialClosurePayload struct {
	TrialID string `json:"trialId"`
}

type SiteGeocodePayload struct {
	// Limit caps how many sites one run geocodes. Zero uses the default batch.
	Limit int `json:"limit,omitempty"`
}

func NewTrialClosureTask(payload TrialClosurePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTrialClosure, data, asynq.TaskID(trialClosureTaskID(payload.TrialID))), nil
}

func ParseTrialClosurePayload(task *asynq.Task) (TrialClosurePayload, error) {
	var payload TrialClosurePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TrialClosurePayload{}, err
	}
	payload.TrialID = strings.TrimSpace(payload.TrialID)
	return payload, nil
}

func NewSiteGeocodeTask(payload SiteGeocodePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSiteGeocode, data), nil
}

func ParseSiteGeocodePayload(task *asynq.Task) (SiteGeocodePayload, error) {
	var payload SiteGeocodePayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SiteGeocodePayload{}, err
	}
	return payload, nil
}

// One pending closure per protocol.
func trialClosureTaskID(trialID string) string {
	return "trial-closure:" + trialID
}
