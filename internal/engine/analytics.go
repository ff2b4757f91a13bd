package engine

import (
	"sort"
	"time"

	"shiftwatch/internal/model"
)

// DivisionStats counts attendance per division. Employees count as present
// when their status is full or partial duty.
func DivisionStats(records []model.Classification, roster model.Roster) map[string]model.DivisionStat {
	divisions := roster.Divisions()
	if len(divisions) == 0 {
		return nil
	}
	stats := make(map[string]model.DivisionStat, len(divisions))
	for _, div := range divisions {
		stats[div.Name] = model.DivisionStat{Division: div.Name, Code: div.Code, Color: div.Color}
	}
	for _, rec := range records {
		st, ok := stats[rec.Division]
		if !ok {
			continue
		}
		st.Total++
		if rec.Status.Present() {
			st.Present++
		} else {
			st.Absent++
		}
		stats[rec.Division] = st
	}
	for name, st := range stats {
		st.Rate = percent(st.Present, st.Total)
		stats[name] = st
	}
	return stats
}

// DetectGaps flags consecutive events more than threshold apart.
func DetectGaps(events []model.Event, threshold time.Duration) []model.Anomaly {
	if len(events) < 2 || threshold <= 0 {
		return nil
	}
	sorted := sortedEvents(events)
	var out []model.Anomaly
	for i := 0; i+1 < len(sorted); i++ {
		gap := sorted[i+1].Timestamp.Sub(sorted[i].Timestamp)
		if gap > threshold {
			out = append(out, model.Anomaly{
				Employee: sorted[i].Employee,
				Kind:     model.AnomalyLargeGap,
				Gap:      gap,
				From:     sorted[i].Timestamp,
				To:       sorted[i+1].Timestamp,
			})
		}
	}
	return out
}

// WeeklyTrends buckets raw events into ISO weeks.
func WeeklyTrends(events []model.Event) []model.WeekTrend {
	type key struct{ year, week int }
	counts := make(map[key]int)
	people := make(map[key]map[string]struct{})
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			continue
		}
		y, w := ev.Timestamp.ISOWeek()
		k := key{y, w}
		counts[k]++
		if people[k] == nil {
			people[k] = make(map[string]struct{})
		}
		people[k][ev.Employee] = struct{}{}
	}
	out := make([]model.WeekTrend, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.WeekTrend{Year: k.year, Week: k.week, UniqueEmployees: len(people[k]), TotalEvents: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Week < out[j].Week
	})
	return out
}
