package prescription

import (
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
)

func validateMedications(inputs []MedicationInput) []string {
	if len(inputs) == 0 {
		return []string{"medications must contain at least one item"}
	}

	var errs []string
	for i, m := range inputs {
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, fmt.Sprintf("medications[%d].name is required", i))
		}
		if strings.TrimSpace(m.Dosage) == "" {
			errs = append(errs, fmt.Sprintf("medications[%d].dosage is required", i))
		}
		if strings.TrimSpace(m.Frequency) == "" {
			errs = append(errs, fmt.Sprintf("medications[%d].frequency is required", i))
		}
		if strings.TrimSpace(m.Duration) == "" {
			errs = append(errs, fmt.Sprintf("medications[%d].duration is required", i))
		}
	}
	return errs
}

func ValidateCreate(cmd *CreatePrescriptionCommand) error {
	var errs []string

	if cmd.PatientID <= 0 {
		errs = append(errs, "patient_id must be a positive integer")
	}
	if cmd.PrescriberID <= 0 {
		errs = append(errs, "prescriber_id must be a positive integer")
	}
	errs = append(errs, validateMedications(cmd.Medications)...)

	if len(errs) > 0 {
		return &domain.ValidationError{Fields: errs}
	}
	return nil
}

func ValidateUpdate(cmd *UpdatePrescriptionCommand) error {
	var errs []string

	if cmd.Status != nil && !cmd.Status.IsValid() {
		errs = append(errs, fmt.Sprintf("status %q must be one of active, completed, cancelled", *cmd.Status))
	}
	if cmd.Medications != nil {
		errs = append(errs, validateMedications(*cmd.Medications)...)
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Fields: errs}
	}
	return nil
}

func ValidateStatus(s Status) error {
	if !s.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("status %q must be one of active, completed, cancelled", s))
	}
	return nil
}

// ValidateLines checks lines that are about to be persisted.
func ValidateLines(lines []MedicationLine) error {
	inputs := make([]MedicationInput, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, MedicationInput{Name: l.Name, Dosage: l.Dosage, Frequency: l.Frequency, Duration: l.Duration})
	}
	if errs := validateMedications(inputs); len(errs) > 0 {
		return &domain.ValidationError{Fields: errs}
	}
	return nil
}
