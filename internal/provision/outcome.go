// Package provision implements the idempotent provisioning steps for a Journai
// environment on Google Cloud.
package provision

import (
	"context"
	"errors"
)

// OutcomeKind classifies how a step finished.
type OutcomeKind int

const (
	KindSucceeded OutcomeKind = iota
	KindSucceededWithURL
	KindFailedHard
	KindFailedSoft
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSucceeded:
		return "succeeded"
	case KindSucceededWithURL:
		return "succeeded_with_url"
	case KindFailedHard:
		return "failed_hard"
	case KindFailedSoft:
		return "failed_soft"
	default:
		return "unknown"
	}
}

// Outcome is the result of one provisioning step. A hard failure aborts the
// run; a soft failure is reported and the run continues.
type Outcome struct {
	kind   OutcomeKind
	url    string
	err    error
	reason string
}

// Succeeded reports a step that reached its desired state.
func Succeeded() Outcome {
	return Outcome{kind: KindSucceeded}
}

// SucceededWithURL reports success and the public URL of the deployed application.
func SucceededWithURL(url string) Outcome {
	return Outcome{kind: KindSucceededWithURL, url: url}
}

// FailedHard reports a failure no later step can recover from.
func FailedHard(err error) Outcome {
	if err == nil {
		err = errors.New("unspecified failure")
	}
	return Outcome{kind: KindFailedHard, err: err}
}

// FailedSoft reports a failure that leaves the environment usable.
func FailedSoft(reason string) Outcome {
	return Outcome{kind: KindFailedSoft, reason: reason}
}

func (o Outcome) Kind() OutcomeKind { return o.kind }

// URL returns the application URL carried by a SucceededWithURL outcome.
func (o Outcome) URL() (string, bool) {
	return o.url, o.kind == KindSucceededWithURL
}

// Err returns the error of a hard failure.
func (o Outcome) Err() error { return o.err }

// Reason returns the explanation of a soft failure.
func (o Outcome) Reason() string { return o.reason }

func (o Outcome) IsHardFailure() bool { return o.kind == KindFailedHard }

func (o Outcome) IsSoftFailure() bool { return o.kind == KindFailedSoft }

// Facts is what a step may learn from earlier steps in the same run.
type Facts struct {
	AppURL string
}

// Step is one named unit of provisioning work.
type Step struct {
	Name string
	Run  func(ctx context.Context, facts Facts) Outcome
}
