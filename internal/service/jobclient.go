package service

import (
	"time"

	"fieldserve/internal/jobs"

	"github.com/hibiken/asynq"
)

// JobClient interface for scheduling background jobs
type JobClient interface {
	ScheduleStartReminder(requestID string, startAt time.Time) error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) ScheduleStartReminder(requestID string, startAt time.Time) error {
	return jobs.ScheduleStartReminder(c.client, requestID, startAt)
}
