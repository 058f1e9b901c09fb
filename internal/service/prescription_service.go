package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/dispatch"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/notify"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/dmehra2102/prod-golang-projects/medrx/internal/service"

const resourcePrescription = "prescription"

// PrescriptionService orchestrates the prescription lifecycle and pharmacy
// dispatch. Only doctors may create or amend; every other operation is open
// to any authenticated caller.
type PrescriptionService struct {
	repo      prescription.Repository
	ledger    dispatch.Ledger
	publisher notify.Publisher
	auditSvc  *AuditService
	metrics   *metrics.Collector
	log       *zap.Logger
	tracer    trace.Tracer
}

func NewPrescriptionService(
	repo prescription.Repository,
	ledger dispatch.Ledger,
	publisher notify.Publisher,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *PrescriptionService {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &PrescriptionService{
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		auditSvc:  auditSvc,
		metrics:   m,
		log:       log,
		tracer:    otel.Tracer(tracerName),
	}
}

// CreatePrescription issues a prescription on behalf of the calling doctor.
// The prescriber is always the caller; cmd.PrescriberID is overwritten.
func (s *PrescriptionService) CreatePrescription(ctx context.Context, caller domain.Caller, cmd *prescription.CreatePrescriptionCommand) (_ *prescription.Prescription, err error) {
	ctx, span := s.startSpan(ctx, "PrescriptionService.CreatePrescription", caller)
	defer func() { endSpan(span, err) }()

	if err := authorizePrescriber(caller); err != nil {
		return nil, err
	}

	cmd.PrescriberID = caller.UserID
	if err := prescription.ValidateCreate(cmd); err != nil {
		return nil, err
	}

	p := &prescription.Prescription{
		PatientID:    cmd.PatientID,
		PrescriberID: cmd.PrescriberID,
		IssuedOn:     prescription.IssueDate(time.Now()),
		Instructions: cmd.Instructions,
		Status:       prescription.StatusActive,
		Medications:  prescription.Lines(0, cmd.Medications),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating prescription: %w", err)
	}

	s.metrics.PrescriptionsIssued.Inc()
	span.SetAttributes(attribute.Int64("prescription.id", p.ID))
	s.log.Info("prescription issued",
		zap.Int64("prescription_id", p.ID),
		zap.Int64("patient_id", p.PatientID),
		zap.Int64("prescriber_id", p.PrescriberID),
		zap.Int("medications", len(p.Medications)),
		zap.String("request_id", caller.RequestID),
	)

	s.auditSvc.LogAsync(ctx, entryFor(caller, domain.ActionCreate, resourcePrescription, formatID(p.ID)))

	// Re-read so the response carries joined display names.
	created, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reading created prescription: %w", err)
	}
	return created, nil
}

func (s *PrescriptionService) GetPrescription(ctx context.Context, caller domain.Caller, id int64) (_ *prescription.Prescription, err error) {
	ctx, span := s.startSpan(ctx, "PrescriptionService.GetPrescription", caller)
	defer func() { endSpan(span, err) }()

	if err := authenticate(caller); err != nil {
		return nil, err
	}
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, entryFor(caller, domain.ActionRead, resourcePrescription, formatID(id)))
	return p, nil
}

func (s *PrescriptionService) ListPatientPrescriptions(ctx context.Context, caller domain.Caller, patientID int64) (_ []*prescription.Prescription, err error) {
	ctx, span := s.startSpan(ctx, "PrescriptionService.ListPatientPrescriptions", caller)
	defer func() { endSpan(span, err) }()

	if err := authenticate(caller); err != nil {
		return nil, err
	}
	if err := requireID("patient_id", patientID); err != nil {
		return nil, err
	}

	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	entry := entryFor(caller, domain.ActionRead, resourcePrescription, "")
	entry.Changes = fmt.Sprintf(`{"patient_id":%d,"count":%d}`, patientID, len(list))
	s.auditSvc.LogAsync(ctx, entry)
	return list, nil
}

// AmendPrescription applies a partial update. Supplying medications replaces
// every existing line.
func (s *PrescriptionService) AmendPrescription(ctx context.Context, caller domain.Caller, id int64, cmd *prescription.UpdatePrescriptionCommand) (_ *prescription.Prescription, err error) {
	ctx, span := s.startSpan(ctx, "PrescriptionService.AmendPrescription", caller)
	defer func() { endSpan(span, err) }()

	if err := authorizePrescriber(caller); err != nil {
		return nil, err
	}
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if cmd.IsEmpty() {
		return nil, domain.NewValidationError("at least one of instructions, status, medications is required")
	}

	updated, err := s.repo.Update(ctx, id, cmd)
	if err != nil {
		return nil, err
	}

	s.metrics.PrescriptionsAmended.Inc()
	if cmd.Status != nil {
		s.metrics.StatusChanges.WithLabelValues(string(*cmd.Status)).Inc()
	}

	entry := entryFor(caller, domain.ActionUpdate, resourcePrescription, formatID(id))
	entry.Changes = amendSummary(cmd)
	s.auditSvc.LogAsync(ctx, entry)

	return updated, nil
}

func (s *PrescriptionService) ChangeStatus(ctx context.Context, caller domain.Caller, id int64, status prescription.Status) (_ *prescription.Prescription, err error) {
	ctx, span := s.startSpan(ctx, "PrescriptionService.ChangeStatus", caller)
	defer func() { endSpan(span, err) }()

	if err := authenticate(caller); err != nil {
		return nil, err
	}
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	updated, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	s.log.Info("prescription status changed",
		zap.Int64("prescription_id", id),
		zap.String("status", string(status)),
		zap.Int64("user_id", caller.UserID),
	)

	entry := entryFor(caller, domain.ActionUpdate, resourcePrescription, formatID(id))
	entry.Changes = fmt.Sprintf(`{"status":%q}`, status)
	s.auditSvc.LogAsync(ctx, entry)

	return updated, nil
}

// SendToPharmacy records that a prescription was routed to a pharmacy. A pair
// can be sent only once; a repeat fails with dispatch.ErrAlreadySent. The
// notification is published after the ledger commits and never changes the result.
func (s *PrescriptionService) SendToPharmacy(ctx context.Context, caller domain.Caller, prescriptionID, pharmacyID int64) (_ *dispatch.Record, err error) {
	ctx, span := s.startSpan(ctx, "PrescriptionService.SendToPharmacy", caller)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.Int64("prescription.id", prescriptionID),
		attribute.Int64("pharmacy.id", pharmacyID),
	)

	if err := authenticate(caller); err != nil {
		return nil, err
	}
	if err := requireID("prescription_id", prescriptionID); err != nil {
		return nil, err
	}
	if err := requireID("pharmacy_id", pharmacyID); err != nil {
		return nil, err
	}

	rec, err := s.ledger.Dispatch(ctx, prescriptionID, pharmacyID)
	if err != nil {
		s.metrics.Dispatches.WithLabelValues(dispatchOutcome(err)).Inc()
		if errors.Is(err, dispatch.ErrAlreadySent) {
			s.log.Warn("duplicate dispatch rejected",
				zap.Int64("prescription_id", prescriptionID),
				zap.Int64("pharmacy_id", pharmacyID),
				zap.String("request_id", caller.RequestID),
			)
		}
		return nil, err
	}

	s.metrics.Dispatches.WithLabelValues("sent").Inc()
	s.log.Info("prescription dispatched",
		zap.Int64("prescription_id", prescriptionID),
		zap.Int64("pharmacy_id", pharmacyID),
		zap.Int64("dispatch_id", rec.ID),
	)

	entry := entryFor(caller, domain.ActionCreate, "dispatch", formatID(rec.ID))
	entry.Changes = fmt.Sprintf(`{"prescription_id":%d,"pharmacy_id":%d}`, prescriptionID, pharmacyID)
	s.auditSvc.LogAsync(ctx, entry)

	s.notifyDispatched(ctx, caller, rec)

	return rec, nil
}

func (s *PrescriptionService) ListDispatches(ctx context.Context, caller domain.Caller, prescriptionID int64) (_ []*dispatch.Record, err error) {
	ctx, span := s.startSpan(ctx, "PrescriptionService.ListDispatches", caller)
	defer func() { endSpan(span, err) }()

	if err := authenticate(caller); err != nil {
		return nil, err
	}
	if err := requireID("prescription_id", prescriptionID); err != nil {
		return nil, err
	}

	return s.ledger.ListByPrescription(ctx, prescriptionID)
}

func (s *PrescriptionService) notifyDispatched(ctx context.Context, caller domain.Caller, rec *dispatch.Record) {
	// The request may already be finishing; the publish gets its own deadline.
	ctx = context.WithoutCancel(ctx)

	p, err := s.repo.GetByID(ctx, rec.PrescriptionID)
	if err != nil {
		s.log.Warn("reading prescription for dispatch event", zap.Int64("prescription_id", rec.PrescriptionID), zap.Error(err))
	}

	if err := s.publisher.PublishDispatched(ctx, notify.NewDispatchEvent(rec, p, caller.RequestID)); err != nil {
		s.metrics.EventsPublished.WithLabelValues("failed").Inc()
		s.log.Error("failed to publish dispatch event",
			zap.Int64("dispatch_id", rec.ID),
			zap.Error(err),
		)
		return
	}
	s.metrics.EventsPublished.WithLabelValues("published").Inc()
}

func (s *PrescriptionService) startSpan(ctx context.Context, name string, caller domain.Caller) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("caller.id", caller.UserID),
		attribute.String("caller.role", string(caller.Role)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func authenticate(caller domain.Caller) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func authorizePrescriber(caller domain.Caller) error {
	if err := authenticate(caller); err != nil {
		return err
	}
	if !caller.Role.CanPrescribe() {
		return ErrForbidden
	}
	return nil
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return domain.NewValidationError(field + " must be a positive integer")
	}
	return nil
}

func dispatchOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "duplicate"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}

func amendSummary(cmd *prescription.UpdatePrescriptionCommand) string {
	var fields []string
	if cmd.Instructions != nil {
		fields = append(fields, `"instructions"`)
	}
	if cmd.Status != nil {
		fields = append(fields, `"status"`)
	}
	if cmd.Medications != nil {
		fields = append(fields, `"medications"`)
	}
	return `{"fields":[` + strings.Join(fields, ",") + `]}`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
