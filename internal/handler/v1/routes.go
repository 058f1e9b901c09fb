package v1

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the prescription and pharmacy endpoints on an
// already authenticated group.
func RegisterRoutes(rg *gin.RouterGroup, prescriptions *PrescriptionHandler, pharmacies *PharmacyHandler) {
	rx := rg.Group("/prescriptions")
	rx.POST("", prescriptions.Create)
	rx.GET("/:id", prescriptions.Get)
	rx.PATCH("/:id", prescriptions.Amend)
	rx.PUT("/:id/status", prescriptions.ChangeStatus)
	rx.POST("/:id/dispatches", prescriptions.Dispatch)
	rx.GET("/:id/dispatches", prescriptions.ListDispatches)

	rg.GET("/patients/:id/prescriptions", prescriptions.ListByPatient)

	rg.GET("/pharmacies", pharmacies.List)
	rg.GET("/pharmacies/:id", pharmacies.Get)
}
