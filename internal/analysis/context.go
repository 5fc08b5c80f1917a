package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jaeyoon-song/fabsight/pkg/models"
)

const eventLayout = "2006-01-02 15:04"

// LotSummary condenses a day of lot_state events for one equipment.
type LotSummary struct {
	Total       int
	StateCounts map[string]int
	HoldCount   int
}

// SummarizeLots tallies lot events by state. HOLD transitions get their own
// counter because they feature in most root-cause hypotheses.
func SummarizeLots(lots []models.LotState) LotSummary {
	s := LotSummary{StateCounts: map[string]int{}}
	for _, l := range lots {
		s.Total++
		s.StateCounts[l.State]++
		if l.State == "HOLD" {
			s.HoldCount++
		}
	}
	return s
}

// DowntimeInfo is the total recorded downtime for one equipment on one day.
type DowntimeInfo struct {
	Hours  float64
	Events int
}

// SummarizeDowntime sums the duration of closed DOWN intervals. Events that
// are still open (no end_time yet) or carry an unparseable timestamp are
// skipped rather than guessed at.
func SummarizeDowntime(events []models.EqpState) DowntimeInfo {
	var d DowntimeInfo
	for _, e := range events {
		if e.State != "DOWN" || e.EndTime == "" {
			continue
		}
		start, err := time.Parse(eventLayout, e.EventTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(eventLayout, e.EndTime)
		if err != nil {
			continue
		}
		if end.Before(start) {
			continue
		}
		d.Hours += end.Sub(start).Hours()
		d.Events++
	}
	return d
}

// ContextInput is everything FormatContext needs to render the evidence
// block for the root-cause prompt.
type ContextInput struct {
	Record  models.KPIRecord
	KPI     string
	Reason  string
	Lots    []models.LotState
	Events  []models.EqpState
	Recipes []models.Recipe
	Trend   []models.KPIRecord
}

// FormatContext renders the collected evidence as the Korean-language text
// block the root-cause prompt embeds. The alarm date and equipment id appear
// verbatim so the model can quote them back.
func FormatContext(in ContextInput) string {
	r := in.Record
	target, actual := TargetActual(r, in.KPI)

	var b strings.Builder

	fmt.Fprintf(&b, "## 알람 정보\n")
	fmt.Fprintf(&b, "- 날짜: %s\n", r.Date)
	fmt.Fprintf(&b, "- 설비: %s (라인: %s, 공정: %s)\n", r.EqpID, r.LineID, r.OperID)
	fmt.Fprintf(&b, "- 이상 KPI: %s\n", in.KPI)
	if in.Reason != "" {
		fmt.Fprintf(&b, "- 이상 내용: %s\n", in.Reason)
	}

	fmt.Fprintf(&b, "\n## KPI 수치\n")
	fmt.Fprintf(&b, "- %s 목표: %g, 실제: %g\n", in.KPI, target, actual)
	fmt.Fprintf(&b, "- OEE: %g%% (목표 %g%%)\n", r.OEEActual, r.OEETarget)
	fmt.Fprintf(&b, "- 처리량: %g개 (목표 %g개)\n", r.THPActual, r.THPTarget)
	fmt.Fprintf(&b, "- TAT: %gh (목표 %gh)\n", r.TATActual, r.TATTarget)
	fmt.Fprintf(&b, "- WIP: %g개 (목표 %g개)\n", r.WIPActual, r.WIPTarget)
	fmt.Fprintf(&b, "- 양품 수량: %d개\n", r.GoodOutQty)

	lots := SummarizeLots(in.Lots)
	fmt.Fprintf(&b, "\n## LOT 현황\n")
	if lots.Total == 0 {
		fmt.Fprintf(&b, "- 당일 LOT 이벤트 없음\n")
	} else {
		fmt.Fprintf(&b, "- 총 LOT 이벤트: %d건\n", lots.Total)
		for _, state := range sortedKeys(lots.StateCounts) {
			fmt.Fprintf(&b, "- %s: %d건\n", state, lots.StateCounts[state])
		}
		fmt.Fprintf(&b, "- HOLD 발생: %d건\n", lots.HoldCount)
	}

	down := SummarizeDowntime(in.Events)
	fmt.Fprintf(&b, "\n## 설비 가동 상태\n")
	if down.Events == 0 {
		fmt.Fprintf(&b, "- 기록된 DOWN 이벤트 없음\n")
	} else {
		fmt.Fprintf(&b, "- DOWN 이벤트: %d건, 총 %.1f시간\n", down.Events, down.Hours)
	}

	fmt.Fprintf(&b, "\n## 레시피 정보\n")
	if len(in.Recipes) == 0 {
		fmt.Fprintf(&b, "- 등록된 레시피 없음\n")
	} else {
		for _, rcp := range in.Recipes {
			fmt.Fprintf(&b, "- %s: 복잡도 %d/10\n", rcp.RcpID, rcp.ComplexLevel)
		}
	}

	if len(in.Trend) > 0 {
		fmt.Fprintf(&b, "\n## 최근 %d일 추이\n", len(in.Trend))
		fmt.Fprintf(&b, "| 날짜 | OEE | 처리량 | TAT | WIP | 알람 |\n")
		fmt.Fprintf(&b, "|------|-----|--------|-----|-----|------|\n")
		for _, t := range in.Trend {
			marker := ""
			if t.AlarmFlag == 1 {
				marker = "⚠"
			}
			fmt.Fprintf(&b, "| %s | %g | %g | %g | %g | %s |\n",
				t.Date, t.OEEActual, t.THPActual, t.TATActual, t.WIPActual, marker)
		}
	}

	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
