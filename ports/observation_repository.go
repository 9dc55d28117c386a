package ports

import (
	"context"

	"cmsig/domain/core"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
)

// ObservationRepository persists and loads the collector's site
// observations. The core never touches storage directly; this boundary
// belongs to the excluded collector/storage collaborators.
type ObservationRepository interface {
	SaveObservations(ctx context.Context, observations []signal.SiteObservation) error
	LoadStore(ctx context.Context) (*signal.Store, error)
	SaveReport(ctx context.Context, report *validation.Report) error
	GetReport(ctx context.Context, runID core.RunID) (*validation.Report, error)
}
