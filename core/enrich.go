package core

import (
	"math"
	"strings"
)

const (
	implementedRatio = 0.9
	partialRatio     = 0.6
)

// EnrichControls fuses raw control scores with catalog profiles into
// display-ready records. The function is total: it never fails, produces
// exactly one output per input control in input order, and tolerates
// missing or sparse profiles. The catalog feed is sparse in practice, so
// every control must end up with a usable score denominator.
func EnrichControls(controls []ControlScore, profiles []ControlProfile) []EnrichedControl {
	out := make([]EnrichedControl, 0, len(controls))
	for _, control := range controls {
		out = append(out, enrichControl(control, matchControlProfile(control, profiles)))
	}
	return out
}

// matchControlProfile tries, in order: exact name, identifier, title.
// First match wins; no match is a valid outcome.
func matchControlProfile(control ControlScore, profiles []ControlProfile) *ControlProfile {
	name := strings.TrimSpace(control.ControlName)
	if name == "" {
		return nil
	}
	for i := range profiles {
		if strings.EqualFold(strings.TrimSpace(profiles[i].ControlName), name) {
			return &profiles[i]
		}
	}
	for i := range profiles {
		if strings.EqualFold(strings.TrimSpace(profiles[i].ID), name) {
			return &profiles[i]
		}
	}
	for i := range profiles {
		if strings.EqualFold(strings.TrimSpace(profiles[i].Title), name) {
			return &profiles[i]
		}
	}
	return nil
}

func enrichControl(control ControlScore, profile *ControlProfile) EnrichedControl {
	maxScore := resolveMaxScore(control, profile)
	enriched := EnrichedControl{
		ControlName:          control.ControlName,
		Title:                control.ControlName,
		Category:             control.ControlCategory,
		CurrentScore:         control.Score,
		MaxScore:             maxScore,
		Description:          control.Description,
		ImplementationStatus: classifyImplementation(control.Score, maxScore),
		ActionType:           resolveActionType(control, profile),
		Remediation:          resolveRemediation(control, profile),
		ScoreGap:             math.Max(0, maxScore-control.Score),
	}
	if profile != nil {
		if title := strings.TrimSpace(profile.Title); title != "" {
			enriched.Title = title
		}
		if description := strings.TrimSpace(profile.Description); description != "" {
			enriched.Description = description
		}
		enriched.Rank = profile.Rank
		enriched.UserImpact = profile.UserImpact
		enriched.ImplementationCost = profile.ImplementationCost
		enriched.Threats = cloneStrings(profile.Threats)
	}
	return enriched
}

// resolveMaxScore applies the three-tier fallback: profile max score,
// rank-derived estimate, then a current-score estimate.
func resolveMaxScore(control ControlScore, profile *ControlProfile) float64 {
	if profile != nil && profile.MaxScore > 0 {
		return profile.MaxScore
	}
	if profile != nil && profile.Rank > 0 {
		return math.Max(5, math.Ceil(10-float64(profile.Rank)/10))
	}
	if control.Score > 0 {
		return math.Ceil(control.Score / 0.8)
	}
	return 5
}

func classifyImplementation(current, max float64) ImplementationStatus {
	if current <= 0 || max <= 0 {
		return ImplementationStatusNotImplemented
	}
	ratio := current / max
	switch {
	case ratio >= implementedRatio:
		return ImplementationStatusImplemented
	case ratio >= partialRatio:
		return ImplementationStatusPartial
	default:
		return ImplementationStatusNotImplemented
	}
}

func resolveActionType(control ControlScore, profile *ControlProfile) string {
	if profile != nil {
		if actionType := strings.TrimSpace(profile.ActionType); actionType != "" {
			return actionType
		}
	}
	name := strings.ToLower(control.ControlName)
	switch {
	case strings.Contains(name, "policy"), strings.Contains(name, "rule"):
		return "Policy"
	case strings.Contains(name, "enable"), strings.Contains(name, "configure"):
		return "Configuration"
	case strings.Contains(name, "review"), strings.Contains(name, "monitor"):
		return "Review"
	case strings.Contains(name, "training"), strings.Contains(name, "awareness"):
		return "Training"
	default:
		return "Other"
	}
}

func resolveRemediation(control ControlScore, profile *ControlProfile) string {
	if profile != nil {
		if remediation := strings.TrimSpace(profile.Remediation); remediation != "" {
			return remediation
		}
	}
	name := strings.ToLower(control.ControlName)
	switch {
	case strings.Contains(name, "mfa"), strings.Contains(name, "multi-factor"), strings.Contains(name, "multifactor"):
		return "Require multi-factor authentication for all user and administrative accounts."
	case strings.Contains(name, "conditional access"):
		return "Define conditional access policies that restrict sign-ins by location, device state, and risk."
	case strings.Contains(name, "privileged"), strings.Contains(name, "admin role"), strings.Contains(name, "global admin"):
		return "Reduce standing privileged role assignments and require just-in-time elevation."
	}
	if description := strings.TrimSpace(control.Description); description != "" {
		return description
	}
	return "Review this control in the security portal and apply the recommended configuration."
}
