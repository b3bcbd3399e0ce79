package jobs

import (
	"context"
	"fmt"
	"time"

	"fieldserve/internal/db"
	"fieldserve/internal/pubsub"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeStartReminder = "request:start_reminder"
	TypeOverdueSweep  = "request:overdue_sweep"
)

const overdueSweepInterval = time.Hour

type JobServer struct {
	server *asynq.Server
	client *asynq.Client
	db     *db.Pool
	bus    *pubsub.Bus
	log    *zap.Logger
}

func NewJobServer(redisAddr string, dbPool *db.Pool, bus *pubsub.Bus, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server: server,
		client: client,
		db:     dbPool,
		bus:    bus,
		log:    log,
	}, client
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeStartReminder, js.handleStartReminder)
	mux.HandleFunc(TypeOverdueSweep, js.handleOverdueSweep)

	// Kick off the recurring overdue sweep; each run reschedules the next.
	if err := ScheduleOverdueSweep(js.client, time.Now().Add(time.Minute)); err != nil {
		js.log.Warn("Failed to schedule initial overdue sweep", zap.Error(err))
	}

	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

// handleStartReminder notifies the assigned technician that the scheduled
// start has arrived for a request that is still pending.
func (js *JobServer) handleStartReminder(ctx context.Context, t *asynq.Task) error {
	requestID := string(t.Payload())

	req, err := js.db.Queries.GetRequestByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get request: %w", err)
	}
	if req.Status != "pending" {
		return nil
	}

	task, err := js.db.Queries.GetTaskByRequestID(ctx, requestID)
	if err != nil {
		// Unassigned again; nothing to remind.
		return nil
	}

	_ = js.bus.PublishTechnician(task.TechnicianID, map[string]interface{}{
		"type":      "request.start_due",
		"requestId": requestID,
		"startDate": req.StartDate,
		"startTime": req.StartTime,
	})

	js.log.Info("Start reminder sent",
		zap.String("request_id", requestID),
		zap.String("technician_id", task.TechnicianID))
	return nil
}

// handleOverdueSweep flags pending requests whose scheduled start has
// passed. It only publishes events; status is never mutated from here.
func (js *JobServer) handleOverdueSweep(ctx context.Context, t *asynq.Task) error {
	defer func() {
		if err := ScheduleOverdueSweep(js.client, time.Now().Add(overdueSweepInterval)); err != nil {
			js.log.Warn("Failed to reschedule overdue sweep", zap.Error(err))
		}
	}()

	today := time.Now().Format("2006-01-02")
	overdue, err := js.db.Queries.ListPendingPastStart(ctx, today)
	if err != nil {
		return fmt.Errorf("failed to list overdue requests: %w", err)
	}

	for _, req := range overdue {
		event := map[string]interface{}{
			"type":      "request.overdue",
			"requestId": req.ID,
			"startDate": req.StartDate,
		}
		_ = js.bus.PublishAdmins(event)
		_ = js.bus.PublishClient(req.ClientID, event)
	}

	if len(overdue) > 0 {
		js.log.Info("Overdue sweep flagged requests", zap.Int("count", len(overdue)))
	}
	return nil
}

// ScheduleStartReminder enqueues a reminder for the scheduled start time.
func ScheduleStartReminder(client *asynq.Client, requestID string, startAt time.Time) error {
	task := asynq.NewTask(TypeStartReminder, []byte(requestID))
	_, err := client.Enqueue(task, asynq.ProcessAt(startAt), asynq.Queue("default"))
	return err
}

// ScheduleOverdueSweep enqueues the next sweep run.
func ScheduleOverdueSweep(client *asynq.Client, at time.Time) error {
	task := asynq.NewTask(TypeOverdueSweep, nil)
	_, err := client.Enqueue(task, asynq.ProcessAt(at), asynq.Queue("low"))
	return err
}
