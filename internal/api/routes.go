package api

import (
	"net/http"

	"fieldserve/internal/auth"
	"fieldserve/internal/pubsub"
	"fieldserve/internal/schema"
	"fieldserve/internal/service"
	"fieldserve/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	Requests  *service.RequestService
	Tasks     *service.TaskService
	Reports   *service.ReportService
	Journal   *pubsub.Journal
	Hub       *ws.Hub
	Shapes    *schema.Compiler
	Log       *zap.Logger
	JWTSecret string
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(d.Log))

	jwtConfig := auth.NewJWTConfig(d.JWTSecret)
	r.Use(jwtConfig.Middleware)

	// Request endpoints
	r.Post("/requests", d.createRequest)
	r.Get("/requests", d.listRequests)
	r.Get("/requests/{id}", d.getRequest)
	r.Patch("/requests/{id}", d.updateRequest)
	r.Post("/requests/{id}/transition", d.transitionRequest)
	r.Post("/requests/{id}/assign", d.assignRequest)
	r.Post("/requests/{id}/images", d.attachImage)
	r.Delete("/requests/{id}/images/{imageId}", d.removeImage)
	r.Get("/requests/{id}/report", d.getReport)
	r.Get("/requests/{id}/events", d.listEvents)

	// Task endpoints
	r.Get("/tasks", d.listTasks)
	r.Get("/tasks/{id}", d.getTask)
	r.Put("/tasks/{id}/deliverables", d.authorDeliverables)

	// Aggregation
	r.Get("/stats", d.getStats)

	// Technician administration
	r.Post("/technicians", d.createTechnician)
	r.Post("/technicians/{id}/activate", d.activateTechnician)
	r.Post("/technicians/{id}/deactivate", d.deactivateTechnician)

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	return r
}
