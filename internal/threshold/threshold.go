// Package threshold は測定記録を通知設定の閾値と比較し、異常値の通知を行う。
package threshold

import "github.com/hitoshi/bptogether/internal/model"

// Metric は評価対象の測定項目。
type Metric string

const (
	MetricSystolic  Metric = "systolic"
	MetricDiastolic Metric = "diastolic"
	MetricPulse     Metric = "pulse"
)

// Direction は閾値の向き。
type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// Level は閾値の段階。AlertはWarnより優先される。
type Level string

const (
	LevelAlert Level = "alert"
	LevelWarn  Level = "warn"
)

// Flag は1つの測定項目・向きについて閾値を超えたことを表す。
type Flag struct {
	Metric    Metric
	Direction Direction
	Level     Level
	Value     int
	Bound     int
}

// rule は1つの測定項目・向きに対するalert/warnの閾値の組。
type rule struct {
	metric    Metric
	direction Direction
	value     int
	alert     *int
	warn      *int
}

func rules(r *model.Reading, s *model.NotificationSetting) []rule {
	return []rule{
		{MetricSystolic, DirectionHigh, r.Systolic, s.SysHighAlert, s.SysHighWarn},
		{MetricSystolic, DirectionLow, r.Systolic, s.SysLowAlert, s.SysLowWarn},
		{MetricDiastolic, DirectionHigh, r.Diastolic, s.DiaHighAlert, s.DiaHighWarn},
		{MetricDiastolic, DirectionLow, r.Diastolic, s.DiaLowAlert, s.DiaLowWarn},
		{MetricPulse, DirectionHigh, r.Pulse, s.PulseHighAlert, s.PulseHighWarn},
		{MetricPulse, DirectionLow, r.Pulse, s.PulseLowAlert, s.PulseLowWarn},
	}
}

// Evaluate は測定記録を閾値と比較し、該当したFlagを返す。
// 閾値はnilまたは0以下の場合は評価しない。
// 高い側は値が閾値以上、低い側は値が閾値以下で該当とする。
// 測定項目・向きごとにalertを先に判定し、該当した場合warnは判定しない。
// settingsがnilの場合はnilを返す。
func Evaluate(r *model.Reading, s *model.NotificationSetting) []Flag {
	if r == nil || s == nil {
		return nil
	}

	var flags []Flag
	for _, ru := range rules(r, s) {
		if bound, ok := exceeds(ru.direction, ru.value, ru.alert); ok {
			flags = append(flags, Flag{ru.metric, ru.direction, LevelAlert, ru.value, bound})
			continue
		}
		if bound, ok := exceeds(ru.direction, ru.value, ru.warn); ok {
			flags = append(flags, Flag{ru.metric, ru.direction, LevelWarn, ru.value, bound})
		}
	}
	return flags
}

func exceeds(d Direction, value int, bound *int) (int, bool) {
	if bound == nil || *bound <= 0 {
		return 0, false
	}
	if d == DirectionHigh {
		return *bound, value >= *bound
	}
	return *bound, value <= *bound
}
