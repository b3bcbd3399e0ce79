package service

import (
	"context"
	"fmt"

	"fieldserve/internal/authz"
	"fieldserve/internal/model"
	"fieldserve/internal/report"
)

type ReportService struct {
	store      Store
	compositor *report.Compositor
}

func NewReportService(store Store, compositor *report.Compositor) *ReportService {
	return &ReportService{store: store, compositor: compositor}
}

// Compose produces the printable document for one record. Export is the
// only operation still permitted on a completed record.
func (s *ReportService) Compose(ctx context.Context, actor model.Actor, id string) (*report.Document, error) {
	row, err := s.store.GetRequestByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to fetch request", err)
	}
	rec := dbRequestToModel(row)

	if !authz.Can(actor, authz.OpExport, &rec) {
		return nil, model.ErrUnauthorized
	}

	if imgs, err := s.store.ListImages(ctx, id); err == nil {
		for _, img := range imgs {
			rec.Images = append(rec.Images, dbImageToModel(img))
		}
	}

	var task *model.Task
	if taskRow, err := s.store.GetTaskByRequestID(ctx, id); err == nil {
		t := dbTaskToModel(taskRow, rec.Status)
		task = &t
	}

	doc, err := s.compositor.Compose(ctx, rec, task)
	if err != nil {
		return nil, fmt.Errorf("failed to compose report: %w", err)
	}
	return doc, nil
}
