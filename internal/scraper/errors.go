package scraper

import (
	"errors"
	"fmt"
)

// ParseError reports a structural failure that makes a whole week unusable: the
// schedule root is missing or no header date could be recovered.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule parse error: %s", e.Reason)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// AnomalyKind classifies a non-fatal extraction problem.
type AnomalyKind string

const (
	AnomalyDateCount   AnomalyKind = "date_count"
	AnomalyDateParse   AnomalyKind = "date_parse"
	AnomalyColumnCount AnomalyKind = "column_count"
	AnomalyNoTimes     AnomalyKind = "card_without_times"
	AnomalyTimeParse   AnomalyKind = "time_parse"
	AnomalyTimeOrder   AnomalyKind = "time_order"
)

// Anomaly is a soft extraction problem. The affected item is skipped or flagged and
// extraction continues.
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Message string      `json:"message"`
}
