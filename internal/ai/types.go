package ai

import (
	"errors"
	"fmt"
)

// Result captures the structured response expected from the remote analyst.
type Result struct {
	RefundScore    *int     `json:"refund_score"`
	Decision       string   `json:"decision"`
	ResolutionType string   `json:"resolution_type"`
	ProposedAmount *float64 `json:"proposed_amount"`
	RiskLevel      string   `json:"risk_level"`
	Reasoning      string   `json:"reasoning"`
}

// FailureKind classifies why a remote analysis could not be used.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureMalformed FailureKind = "malformed"
	FailureEmpty     FailureKind = "empty"
)

// Failure is returned for every unusable remote response.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// KindOf returns the failure kind of err, or an empty kind when err is not a Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
