package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/gcloud"
)

// Criticality decides whether a resource failure aborts the run.
type Criticality int

const (
	Soft Criticality = iota
	Hard
)

// Resource is a cloud resource reconciled with the describe-then-create pattern.
type Resource struct {
	Kind string
	Name string
	// Describe succeeds when the resource is present.
	Describe command.Command
	// DescribeNeedsOutput treats an empty describe stdout as absent, for list-style lookups.
	DescribeNeedsOutput bool
	// Create runs in order when the resource is absent.
	Create []command.Command
	// OnPresent runs when the resource already exists, to converge mutable settings.
	OnPresent   []command.Command
	Criticality Criticality
}

func (r Resource) label() string {
	if r.Name == "" {
		return r.Kind
	}
	return fmt.Sprintf("%s %s", r.Kind, r.Name)
}

// Ensure reads the resource and creates it only when the read fails. A create that
// is rejected because the resource already exists counts as success; every other
// create failure is hard or soft according to the resource's criticality.
func (p *Provisioner) Ensure(ctx context.Context, res Resource) Outcome {
	present, err := p.describe(ctx, res)
	if present {
		p.out.Success("%s already exists", res.label())
		for _, update := range res.OnPresent {
			if _, err := p.exec.Run(ctx, update); err != nil {
				return p.fail(res.Criticality, fmt.Sprintf("update %s", res.label()), err)
			}
		}
		return Succeeded()
	}
	p.logger.Debug().Str("resource", res.label()).Str("detail", gcloud.Detail(err)).Msg("resource not found, creating")

	for _, create := range res.Create {
		_, err := p.exec.Run(ctx, create)
		if err == nil {
			continue
		}
		if gcloud.IsAlreadyExists(err) {
			p.out.Warning("%s reported already exists, continuing", res.label())
			p.logger.Info().Str("resource", res.label()).Str("detail", gcloud.Detail(err)).Msg("create reported existing resource")
			continue
		}
		return p.fail(res.Criticality, fmt.Sprintf("create %s", res.label()), err)
	}

	p.out.Success("%s created", res.label())
	return Succeeded()
}

func (p *Provisioner) describe(ctx context.Context, res Resource) (bool, error) {
	result, err := p.exec.Run(ctx, res.Describe)
	if err != nil {
		return false, err
	}
	if res.DescribeNeedsOutput && result.Line() == "" {
		return false, nil
	}
	return true, nil
}

// Apply runs an idempotent mutation with no describe phase.
func (p *Provisioner) Apply(ctx context.Context, what string, criticality Criticality, cmd command.Command) Outcome {
	if _, err := p.exec.Run(ctx, cmd); err != nil {
		return p.fail(criticality, what, err)
	}
	p.out.Success("%s", what)
	return Succeeded()
}

func (p *Provisioner) fail(criticality Criticality, what string, err error) Outcome {
	detail := gcloud.Detail(err)
	if criticality == Hard {
		p.out.Error("%s failed", what)
		p.logger.Error().Str("operation", what).Str("detail", detail).Msg("hard failure")
		return FailedHard(fmt.Errorf("%s: %w", what, err))
	}
	p.out.Warning("%s failed, continuing", what)
	p.logger.Warn().Str("operation", what).Str("detail", detail).Msg("soft failure")
	return FailedSoft(fmt.Sprintf("%s: %s", what, firstLine(detail)))
}

// combine folds several outcomes of one step: the first hard failure wins,
// otherwise soft reasons are joined.
func combine(outcomes ...Outcome) Outcome {
	var reasons []string
	for _, o := range outcomes {
		switch o.Kind() {
		case KindFailedHard:
			return o
		case KindFailedSoft:
			reasons = append(reasons, o.Reason())
		}
	}
	if len(reasons) > 0 {
		return FailedSoft(strings.Join(reasons, "; "))
	}
	return Succeeded()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
