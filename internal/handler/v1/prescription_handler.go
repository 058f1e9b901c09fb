package v1

import (
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/service"
	"github.com/gin-gonic/gin"
)

type medicationRequest struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

func toInputs(reqs []medicationRequest) []prescription.MedicationInput {
	inputs := make([]prescription.MedicationInput, 0, len(reqs))
	for _, r := range reqs {
		inputs = append(inputs, prescription.MedicationInput{
			Name:      r.Name,
			Dosage:    r.Dosage,
			Frequency: r.Frequency,
			Duration:  r.Duration,
		})
	}
	return inputs
}

type createPrescriptionRequest struct {
	PatientID    int64               `json:"patient_id"`
	Instructions string              `json:"instructions"`
	Medications  []medicationRequest `json:"medications"`
}

// Absent fields stay untouched; "medications" replaces the full set.
type amendPrescriptionRequest struct {
	Instructions *string              `json:"instructions"`
	Status       *prescription.Status `json:"status"`
	Medications  *[]medicationRequest `json:"medications"`
}

type changeStatusRequest struct {
	Status prescription.Status `json:"status"`
}

type dispatchRequest struct {
	PharmacyID int64 `json:"pharmacy_id"`
}

type PrescriptionHandler struct {
	svc *service.PrescriptionService
}

func NewPrescriptionHandler(svc *service.PrescriptionService) *PrescriptionHandler {
	return &PrescriptionHandler{svc: svc}
}

// POST /api/v1/prescriptions
func (h *PrescriptionHandler) Create(c *gin.Context) {
	var req createPrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.CreatePrescription(c.Request.Context(), middleware.CallerFrom(c), &prescription.CreatePrescriptionCommand{
		PatientID:    req.PatientID,
		Instructions: req.Instructions,
		Medications:  toInputs(req.Medications),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

// GET /api/v1/prescriptions/:id
func (h *PrescriptionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPrescription(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

// GET /api/v1/patients/:id/prescriptions
func (h *PrescriptionHandler) ListByPatient(c *gin.Context) {
	patientID, ok := parseID(c, "id")
	if !ok {
		return
	}

	list, err := h.svc.ListPatientPrescriptions(c.Request.Context(), middleware.CallerFrom(c), patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}

// PATCH /api/v1/prescriptions/:id
func (h *PrescriptionHandler) Amend(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req amendPrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &prescription.UpdatePrescriptionCommand{
		Instructions: req.Instructions,
		Status:       req.Status,
	}
	if req.Medications != nil {
		inputs := toInputs(*req.Medications)
		cmd.Medications = &inputs
	}

	p, err := h.svc.AmendPrescription(c.Request.Context(), middleware.CallerFrom(c), id, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

// PUT /api/v1/prescriptions/:id/status
func (h *PrescriptionHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req changeStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.ChangeStatus(c.Request.Context(), middleware.CallerFrom(c), id, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

// POST /api/v1/prescriptions/:id/dispatches
func (h *PrescriptionHandler) Dispatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dispatchRequest
	if !bindJSON(c, &req) {
		return
	}

	rec, err := h.svc.SendToPharmacy(c.Request.Context(), middleware.CallerFrom(c), id, req.PharmacyID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rec)
}

// GET /api/v1/prescriptions/:id/dispatches
func (h *PrescriptionHandler) ListDispatches(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	records, err := h.svc.ListDispatches(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, records)
}
