package model

import (
	"errors"
	"fmt"
)

// ErrFamilyNotFound reports an unknown product family. Fatal for the run and
// not retryable until the configuration is fixed.
var ErrFamilyNotFound = errors.New("product family not found")

// ErrUnknownSelectionGroup reports a material line referencing a selection
// table the family does not define.
var ErrUnknownSelectionGroup = errors.New("unknown selection group")

// MissingAttributeError reports a piece lacking a required attribute that has
// no declared default. Surfaced before any formula evaluation.
type MissingAttributeError struct {
	Family  string
	PieceID string
	Attr    string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("piece %s (family %s): required attribute %q is missing", e.PieceID, e.Family, e.Attr)
}

// NoComponentError reports a selection table with no matching rule for a
// piece. A gap in the rule ranges, so a configuration defect.
type NoComponentError struct {
	Family  string
	Group   string
	PieceID string
}

func (e *NoComponentError) Error() string {
	return fmt.Sprintf("family %s: no selection rule in group %q matches piece %s", e.Family, e.Group, e.PieceID)
}
