package dispatch

import (
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
)

var ErrAlreadySent = fmt.Errorf("prescription already sent to this pharmacy: %w", domain.ErrConflict)
