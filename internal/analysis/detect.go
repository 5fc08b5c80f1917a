// Package analysis holds the pure KPI computations of the triage pipeline:
// deviation detection over a kpi_daily row and formatting of the context
// block handed to the language model.
package analysis

import (
	"fmt"

	"github.com/jaeyoon-song/fabsight/pkg/models"
)

// deviation is one KPI on the bad side of its target, with the relative
// deviation fraction used for ranking.
type deviation struct {
	kpi      string
	fraction float64
}

// DetectAlarmKPI decides which KPI breached its target the hardest.
// For each KPI only the bad side counts: OEE/THP below target, TAT above
// target, WIP on either side (exceed and shortage checked independently).
// Among violators the largest deviation fraction wins; ties keep the first
// in evaluation order OEE, THP, TAT, WIP_EXCEED, WIP_SHORTAGE.
//
// A row with no violator falls back to OEE. That fallback is deliberate:
// the callers only feed rows already flagged as alarms, and a row whose
// numbers no longer violate still needs a KPI to hang the analysis on.
func DetectAlarmKPI(r models.KPIRecord) string {
	var violators []deviation

	if r.OEEActual < r.OEETarget && r.OEETarget != 0 {
		violators = append(violators, deviation{models.KPIOEE, (r.OEETarget - r.OEEActual) / r.OEETarget})
	}
	if r.THPActual < r.THPTarget && r.THPTarget != 0 {
		violators = append(violators, deviation{models.KPITHP, (r.THPTarget - r.THPActual) / r.THPTarget})
	}
	if r.TATActual > r.TATTarget && r.TATTarget != 0 {
		violators = append(violators, deviation{models.KPITAT, (r.TATActual - r.TATTarget) / r.TATTarget})
	}
	if r.WIPActual > r.WIPTarget && r.WIPTarget != 0 {
		violators = append(violators, deviation{models.KPIWIPExceed, (r.WIPActual - r.WIPTarget) / r.WIPTarget})
	}
	if r.WIPActual < r.WIPTarget && r.WIPTarget != 0 {
		violators = append(violators, deviation{models.KPIWIPShortage, (r.WIPTarget - r.WIPActual) / r.WIPTarget})
	}

	if len(violators) == 0 {
		return models.KPIOEE
	}

	best := violators[0]
	for _, v := range violators[1:] {
		if v.fraction > best.fraction {
			best = v
		}
	}
	return best.kpi
}

// TargetActual returns the target/actual pair for the given KPI name.
// WIP_EXCEED and WIP_SHORTAGE both map to the WIP pair.
func TargetActual(r models.KPIRecord, kpi string) (target, actual float64) {
	switch kpi {
	case models.KPIOEE:
		return r.OEETarget, r.OEEActual
	case models.KPITHP:
		return r.THPTarget, r.THPActual
	case models.KPITAT:
		return r.TATTarget, r.TATActual
	default:
		return r.WIPTarget, r.WIPActual
	}
}

// CheckAlarmCondition re-confirms the bad-side inequality for one KPI and
// returns a human-readable explanation with the numeric gap. It never
// re-ranks; detection is DetectAlarmKPI's job.
func CheckAlarmCondition(kpi string, target, actual float64) (bool, string) {
	switch kpi {
	case models.KPIOEE:
		if actual < target {
			return true, fmt.Sprintf("OEE가 목표치보다 %.2f%% 낮습니다 (목표: %g%%, 실제: %g%%)",
				target-actual, target, actual)
		}
	case models.KPITHP:
		if actual < target {
			return true, fmt.Sprintf("처리량이 목표보다 %.0f개 부족합니다 (목표: %g개, 실제: %g개)",
				target-actual, target, actual)
		}
	case models.KPITAT:
		if actual > target {
			return true, fmt.Sprintf("처리 시간이 목표보다 %.2f시간 초과했습니다 (목표: %gh, 실제: %gh)",
				actual-target, target, actual)
		}
	case models.KPIWIPExceed:
		if actual > target {
			return true, fmt.Sprintf("재공품이 목표보다 %.0f개 초과했습니다 (목표: %g개, 실제: %g개)",
				actual-target, target, actual)
		}
	case models.KPIWIPShortage:
		if actual < target {
			return true, fmt.Sprintf("재공품이 목표보다 %.0f개 부족합니다 (목표: %g개, 실제: %g개)",
				target-actual, target, actual)
		}
	}
	return false, ""
}
