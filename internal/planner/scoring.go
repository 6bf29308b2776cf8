package planner

import "sort"

// scoreCategory normalizes duration and greenness over the surviving
// candidates of one category, computes the composite score, and returns
// the best keep candidates by descending total score.
//
// timeNorm and dgviNorm are min-max normalized within the category (0 when
// all candidates are equal). Greenness is higher-is-better, so the penalty
// uses its complement: penalty = wTime*timeNorm + wGreen*(1-dgviNorm).
// The user-facing scores are inverted so larger is better.
func scoreCategory(plans []*RoutePlan, prefs Preferences, keep int) []*RoutePlan {
	if len(plans) == 0 {
		return nil
	}

	minDur, maxDur := plans[0].TotalDuration, plans[0].TotalDuration
	minDGVI, maxDGVI := plans[0].TotalAcDGVI, plans[0].TotalAcDGVI
	for _, p := range plans[1:] {
		if p.TotalDuration < minDur {
			minDur = p.TotalDuration
		}
		if p.TotalDuration > maxDur {
			maxDur = p.TotalDuration
		}
		if p.TotalAcDGVI < minDGVI {
			minDGVI = p.TotalAcDGVI
		}
		if p.TotalAcDGVI > maxDGVI {
			maxDGVI = p.TotalAcDGVI
		}
	}

	durSpan := (maxDur - minDur).Seconds()
	dgviSpan := maxDGVI - minDGVI

	for _, p := range plans {
		timeNorm := 0.0
		if durSpan > 0 {
			timeNorm = (p.TotalDuration - minDur).Seconds() / durSpan
		}
		dgviNorm := 0.0
		greenPenalty := 0.0
		if dgviSpan > 0 {
			dgviNorm = (p.TotalAcDGVI - minDGVI) / dgviSpan
			greenPenalty = 1 - dgviNorm
		}

		penalty := prefs.Time*timeNorm + prefs.Green*greenPenalty
		p.DurationScore = 1 - timeNorm
		p.AcDGVIScore = dgviNorm
		p.TotalScore = 1 - penalty
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].TotalScore > plans[j].TotalScore
	})
	if len(plans) > keep {
		plans = plans[:keep]
	}
	return plans
}
