package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaeyoon-song/fabsight/pkg/models"
)

func TestSummarizeLots(t *testing.T) {
	lots := []models.LotState{
		{LotID: "L1", State: "RUN"},
		{LotID: "L2", State: "HOLD"},
		{LotID: "L3", State: "RUN"},
		{LotID: "L4", State: "HOLD"},
		{LotID: "L5", State: "DONE"},
	}

	s := SummarizeLots(lots)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.HoldCount)
	assert.Equal(t, 2, s.StateCounts["RUN"])
	assert.Equal(t, 1, s.StateCounts["DONE"])
}

func TestSummarizeDowntime(t *testing.T) {
	events := []models.EqpState{
		{State: "DOWN", EventTime: "2026-05-01 02:00", EndTime: "2026-05-01 05:00"},
		{State: "DOWN", EventTime: "2026-05-01 10:00", EndTime: "2026-05-01 10:30"},
		// Open interval, must not count.
		{State: "DOWN", EventTime: "2026-05-01 22:00", EndTime: ""},
		// Non-DOWN state, must not count.
		{State: "IDLE", EventTime: "2026-05-01 06:00", EndTime: "2026-05-01 07:00"},
	}

	d := SummarizeDowntime(events)
	assert.Equal(t, 2, d.Events)
	assert.InDelta(t, 3.5, d.Hours, 1e-9)
}

func TestSummarizeDowntime_BadTimestamps(t *testing.T) {
	events := []models.EqpState{
		{State: "DOWN", EventTime: "not-a-time", EndTime: "2026-05-01 05:00"},
		{State: "DOWN", EventTime: "2026-05-01 05:00", EndTime: "2026-05-01 04:00"},
	}

	d := SummarizeDowntime(events)
	assert.Equal(t, 0, d.Events)
	assert.Zero(t, d.Hours)
}

func TestFormatContext(t *testing.T) {
	rec := record(70, 53.51, 100, 80, 10, 9, 50, 50)
	rec.GoodOutQty = 420

	out := FormatContext(ContextInput{
		Record: rec,
		KPI:    models.KPIOEE,
		Reason: "OEE가 목표치보다 16.49% 낮습니다",
		Lots: []models.LotState{
			{LotID: "L1", State: "HOLD"},
			{LotID: "L2", State: "RUN"},
		},
		Events: []models.EqpState{
			{State: "DOWN", EventTime: "2026-05-01 02:00", EndTime: "2026-05-01 05:00"},
		},
		Recipes: []models.Recipe{
			{RcpID: "RCP-A", ComplexLevel: 9},
		},
	})

	// Date and equipment id must appear verbatim.
	assert.Contains(t, out, "2026-05-01")
	assert.Contains(t, out, "EQP-001")
	assert.Contains(t, out, "OEE")
	assert.Contains(t, out, "HOLD 발생: 1건")
	assert.Contains(t, out, "총 3.0시간")
	assert.Contains(t, out, "RCP-A: 복잡도 9/10")
	assert.NotContains(t, out, "추이")
}

func TestFormatContext_EmptyCollaterals(t *testing.T) {
	out := FormatContext(ContextInput{
		Record: record(70, 53.51, 100, 80, 10, 9, 50, 50),
		KPI:    models.KPIOEE,
	})

	assert.Contains(t, out, "당일 LOT 이벤트 없음")
	assert.Contains(t, out, "기록된 DOWN 이벤트 없음")
	assert.Contains(t, out, "등록된 레시피 없음")
}

func TestFormatContext_Trend(t *testing.T) {
	trend := []models.KPIRecord{
		record(70, 68, 100, 98, 10, 9, 50, 48),
		record(70, 55, 100, 80, 10, 12, 50, 70),
	}
	trend[0].Date = "2026-04-29"
	trend[1].Date = "2026-04-30"
	trend[1].AlarmFlag = 1

	out := FormatContext(ContextInput{
		Record: record(70, 53.51, 100, 80, 10, 9, 50, 50),
		KPI:    models.KPIOEE,
		Trend:  trend,
	})

	assert.Contains(t, out, "최근 2일 추이")
	assert.Contains(t, out, "| 2026-04-29 |")
	assert.Contains(t, out, "| 2026-04-30 |")
	assert.Contains(t, out, "⚠")
}
