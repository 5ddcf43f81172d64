package core

import (
	"net/url"

	"haccpcore/pkg/domain"
)

// Query parameter names forming the resumable URL contract:
// ?step=<section>&id=<draftOrPlanID>&new=true.
const (
	QueryStep = "step"
	QueryID   = "id"
	QueryNew  = "new"
)

// EncodeNavigation mirrors the controller position into the query values.
// The step parameter is left untouched once the interview is complete so the
// final URL stays stable.
func EncodeNavigation(q url.Values, current domain.Section, draftID string) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if current != domain.SectionComplete {
		q.Set(QueryStep, string(current))
	}
	if draftID != "" {
		q.Set(QueryID, draftID)
	}
	return q
}

// DecodeJump reads a requested deep-link target from the query values.
// Returns false when the query names no section, an unknown section, or the
// section the interview is already in.
func DecodeJump(q url.Values, current domain.Section) (domain.Section, bool) {
	raw := q.Get(QueryStep)
	if raw == "" {
		return "", false
	}
	target := domain.Section(raw)
	if !target.Valid() || target == current {
		return "", false
	}
	return target, true
}

// DecodeNew reports whether the query requests a fresh interview. The new
// parameter is request-only; EncodeNavigation never writes it back.
func DecodeNew(q url.Values) bool {
	return q.Get(QueryNew) == "true"
}

// sectionPrerequisites lists the sections whose answers must already exist
// before a direct jump to the keyed section is honored.
var sectionPrerequisites = map[domain.Section][]domain.Section{
	domain.SectionProcess:          {domain.SectionProduct},
	domain.SectionPRP:              {domain.SectionProduct, domain.SectionProcess},
	domain.SectionHazards:          {domain.SectionProduct, domain.SectionProcess, domain.SectionPRP},
	domain.SectionCCPDetermination: {domain.SectionProduct, domain.SectionProcess, domain.SectionPRP, domain.SectionHazards},
	domain.SectionCCPManagement:    {domain.SectionProduct, domain.SectionProcess, domain.SectionPRP, domain.SectionHazards},
	domain.SectionValidation:       {domain.SectionProduct, domain.SectionProcess, domain.SectionPRP},
	domain.SectionGenerating:       nil, // transient, never a jump target
	domain.SectionComplete:         nil, // reached only through generation
}

// canEnter verifies that the prerequisite data for a deep-link target exists.
// Loop sections additionally require their loop inputs: hazards needs process
// steps, the CCP sections need significant hazards and decisions.
func canEnter(section domain.Section, view controllerView) bool {
	switch section {
	case domain.SectionGenerating, domain.SectionComplete:
		return false
	case domain.SectionProduct:
		return true
	}
	for _, prereq := range sectionPrerequisites[section] {
		if len(view.answers[prereq]) == 0 {
			return false
		}
	}
	switch section {
	case domain.SectionHazards:
		return len(view.steps) > 0
	case domain.SectionCCPDetermination:
		return len(view.significant) > 0
	case domain.SectionCCPManagement:
		for _, d := range view.decisions {
			if d.IsCCP {
				return true
			}
		}
		return false
	}
	return true
}
