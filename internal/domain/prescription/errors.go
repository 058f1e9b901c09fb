package prescription

import (
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
)

var (
	ErrPrescriptionNotFound = fmt.Errorf("prescription %w", domain.ErrNotFound)
	ErrPatientNotFound      = fmt.Errorf("patient %w", domain.ErrNotFound)
	ErrPrescriberNotFound   = fmt.Errorf("prescriber %w", domain.ErrNotFound)
)
