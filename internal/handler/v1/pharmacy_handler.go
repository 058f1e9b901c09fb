package v1

import (
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/service"
	"github.com/gin-gonic/gin"
)

type PharmacyHandler struct {
	svc *service.PharmacyService
}

func NewPharmacyHandler(svc *service.PharmacyService) *PharmacyHandler {
	return &PharmacyHandler{svc: svc}
}

func (h *PharmacyHandler) List(c *gin.Context) {
	list, err := h.svc.ListPharmacies(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}

func (h *PharmacyHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPharmacy(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}
