package service

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/pharmacy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// PharmacyService exposes the read-only pharmacy directory to authenticated callers.
type PharmacyService struct {
	dir    pharmacy.Directory
	tracer trace.Tracer
}

func NewPharmacyService(dir pharmacy.Directory) *PharmacyService {
	return &PharmacyService{dir: dir, tracer: otel.Tracer(tracerName)}
}

func (s *PharmacyService) ListPharmacies(ctx context.Context, caller domain.Caller) (_ []*pharmacy.Pharmacy, err error) {
	ctx, span := s.tracer.Start(ctx, "PharmacyService.ListPharmacies")
	defer func() { endSpan(span, err) }()

	if err := authenticate(caller); err != nil {
		return nil, err
	}
	return s.dir.List(ctx)
}

func (s *PharmacyService) GetPharmacy(ctx context.Context, caller domain.Caller, id int64) (_ *pharmacy.Pharmacy, err error) {
	ctx, span := s.tracer.Start(ctx, "PharmacyService.GetPharmacy")
	defer func() { endSpan(span, err) }()

	if err := authenticate(caller); err != nil {
		return nil, err
	}
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.dir.GetByID(ctx, id)
}
