package services

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/labtrack/lims/pkg/errors"
)

// storeError passes typed errors through and wraps anything else as INTERNAL
func storeError(msg string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.TypeOf(err) != apperrors.ErrorTypeInternal {
		return err
	}
	return apperrors.NewInternalError(msg, err)
}

// peso renders an amount the way billing descriptions and audit entries print it
func peso(amount float64) string {
	return fmt.Sprintf("₱%.2f", amount)
}

func required(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apperrors.NewValidationError(fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
}
