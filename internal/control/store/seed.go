package store

import (
	"context"
	"errors"
	"time"

	"parapet/internal/control/models"
	id "parapet/pkg/domain"
	"parapet/pkg/platform/sentinel"
)

// SeedBaselineControls loads a starter catalog so a fresh register has
// something to link against. Entries whose reference already exists are
// skipped, which makes reseeding on restart harmless.
func SeedBaselineControls(ctx context.Context, controls ControlStore) error {
	baseline := []struct {
		reference   string
		name        string
		description string
	}{
		{"AC-01", "Access control policy", "Documented access control policy reviewed annually."},
		{"AC-02", "Least privilege", "Accounts carry the minimum permissions their role requires."},
		{"CM-01", "Change management", "Production changes go through review and approval."},
		{"CP-01", "Backup and restore", "Critical data is backed up and restores are exercised."},
		{"IR-01", "Incident response plan", "Security incidents follow a documented response runbook."},
		{"LG-01", "Centralized logging", "Security-relevant events are shipped to central log storage."},
		{"PT-01", "Patch management", "Operating systems and dependencies are patched on a defined cadence."},
		{"VN-01", "Vulnerability scanning", "Internet-facing services are scanned on a recurring schedule."},
	}

	now := time.Now()
	for _, entry := range baseline {
		control, err := models.NewControl(id.NewControlID(), entry.reference, entry.name, entry.description, now)
		if err != nil {
			return err
		}
		if err := controls.Create(ctx, control); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return err
		}
	}
	return nil
}
