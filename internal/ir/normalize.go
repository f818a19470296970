package ir

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidDraft is returned for drafts that cannot be queued.
var ErrInvalidDraft = errors.New("invalid sos draft")

// ValidateDraft checks coordinate ranges and the timestamp.
// The emergency type and message are free-form and stored as given.
// Errors wrap ErrInvalidDraft.
func ValidateDraft(d Draft) error {
	if math.IsNaN(d.Latitude) || d.Latitude < -90 || d.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidDraft, d.Latitude)
	}
	if math.IsNaN(d.Longitude) || d.Longitude < -180 || d.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidDraft, d.Longitude)
	}
	if d.Timestamp < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidDraft)
	}
	return nil
}

var upper = cases.Upper(language.Und)

// NormalizeStatus maps an operator-supplied status ("acknowledged",
// " Dispatched ") onto the canonical upper-case form. The result still has
// to be checked against ValidStatuses.
func NormalizeStatus(s string) string {
	return upper.String(norm.NFC.String(strings.TrimSpace(s)))
}
