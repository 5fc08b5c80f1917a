// Package models contains shared data models used across the FabSight codebase.
package models

// KPI names used throughout the pipeline. WIP breaches split into two names
// because the exceed and shortage cases have different root-cause profiles.
const (
	KPIOEE         = "OEE"
	KPITHP         = "THP"
	KPITAT         = "TAT"
	KPIWIPExceed   = "WIP_EXCEED"
	KPIWIPShortage = "WIP_SHORTAGE"
)

// KPIRecord is one row of the kpi_daily table: actual/target pairs for the
// four tracked KPIs on a single equipment-day.
type KPIRecord struct {
	Date       string  `json:"date"`
	EqpID      string  `json:"eqp_id"`
	LineID     string  `json:"line_id"`
	OperID     string  `json:"oper_id"`
	OEEActual  float64 `json:"oee_v"`
	OEETarget  float64 `json:"oee_t"`
	THPActual  float64 `json:"thp_v"`
	THPTarget  float64 `json:"thp_t"`
	TATActual  float64 `json:"tat_v"`
	TATTarget  float64 `json:"tat_t"`
	WIPActual  float64 `json:"wip_v"`
	WIPTarget  float64 `json:"wip_t"`
	GoodOutQty int     `json:"good_out_qty"`
	AlarmFlag  int     `json:"alarm_flag"`
}

// LotState is one lot-state transition event from the lot_state table.
type LotState struct {
	LotID     string `json:"lot_id"`
	EqpID     string `json:"eqp_id"`
	State     string `json:"lot_state"`
	InCount   int    `json:"in_cnt"`
	EventTime string `json:"event_time"`
}

// EqpState is one equipment up/down event from the eqp_state table.
// EndTime is empty while the state is still open.
type EqpState struct {
	EqpID     string `json:"eqp_id"`
	State     string `json:"eqp_state"`
	EventTime string `json:"event_time"`
	EndTime   string `json:"end_time"`
}

// Recipe is one row of the rcp_state table. ComplexLevel is a 1-10 scale.
type Recipe struct {
	RcpID        string `json:"rcp_id"`
	EqpID        string `json:"eqp_id"`
	ComplexLevel int    `json:"complex_level"`
}

// RootCause is a single LLM-proposed root-cause hypothesis.
// Probability is a confidence percentage in [0, 100].
type RootCause struct {
	Cause       string `json:"cause"`
	Probability int    `json:"probability"`
	Evidence    string `json:"evidence"`
}
