package service

import (
	"context"

	"uvchamber/internal/control"
)

// MonitoringService reads the live controller snapshot.
type MonitoringService struct {
	ctrl *control.Controller
}

func NewMonitoringService(ctrl *control.Controller) *MonitoringService {
	return &MonitoringService{ctrl: ctrl}
}

var _ Monitoring = (*MonitoringService)(nil)

// Status returns the controller's current snapshot.
func (s *MonitoringService) Status(ctx context.Context) (control.Status, error) {
	return s.ctrl.Status(), nil
}
