package wikictx

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Tier selects which aggregates a page carries, by linked entry count.
type Tier int

const (
	TierMinimal Tier = iota
	TierStandard
	TierFull
)

// Thresholds and limits of the aggregates.
const (
	StandardThreshold      = 3
	FullThreshold          = 15
	MinCooccurrenceEntries = 5
	MinOverlap             = 3
	WeekThreshold          = 8
	TopLocations           = 10
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierFull:
		return "full"
	}
	return "minimal"
}

// TierFor returns the tier of an entity linked to n entries.
func TierFor(n int) Tier {
	switch {
	case n >= FullThreshold:
		return TierFull
	case n >= StandardThreshold:
		return TierStandard
	}
	return TierMinimal
}

// MonthCount is one row of a monthly timeline.
type MonthCount struct {
	Year  int
	Month time.Month
	Count int
}

// Label returns the "YYYY-MM" key of the row.
func (m MonthCount) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Timeline counts entries per (year, month), ascending.
func Timeline(entries []*model.Entry) []MonthCount {
	counts := make(map[[2]int]int)
	for _, e := range entries {
		counts[[2]int{e.Date.Year(), int(e.Date.Month())}]++
	}
	out := make([]MonthCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthCount{Year: k[0], Month: time.Month(k[1]), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// Count is a ranked companion: an entity and the number of entries it shares.
type Count struct {
	Ref   Ref
	Count int
}

// CountCompanions counts, across entries, how many entries each id picked
// from an entry appears in. keep filters ids (nil keeps all).
func CountCompanions(entries []*model.Entry, pick func(*model.Entry) []int64, keep func(int64) bool) map[int64]int {
	counts := make(map[int64]int)
	for _, e := range entries {
		seen := make(map[int64]struct{})
		for _, id := range pick(e) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if keep != nil && !keep(id) {
				continue
			}
			counts[id]++
		}
	}
	return counts
}

// Cooccurrence is CountCompanions gated on the set size: it returns nil when
// fewer than MinCooccurrenceEntries entries are given and drops companions
// seen in fewer than MinOverlap entries.
func Cooccurrence(entries []*model.Entry, pick func(*model.Entry) []int64, keep func(int64) bool) map[int64]int {
	if len(entries) < MinCooccurrenceEntries {
		return nil
	}
	counts := CountCompanions(entries, pick, keep)
	for id, n := range counts {
		if n < MinOverlap {
			delete(counts, id)
		}
	}
	return counts
}

// Ranked orders counts by count descending, then key, then id. limit <= 0
// keeps every row.
func Ranked(counts map[int64]int, ref func(int64) Ref, limit int) []Count {
	type row struct {
		id int64
		c  Count
	}
	rows := make([]row, 0, len(counts))
	for id, n := range counts {
		rows = append(rows, row{id, Count{Ref: ref(id), Count: n}})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.c.Count != b.c.Count {
			return a.c.Count > b.c.Count
		}
		ka, kb := strings.ToLower(a.c.Ref.Key), strings.ToLower(b.c.Ref.Key)
		if ka != kb {
			return ka < kb
		}
		return a.id < b.id
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]Count, len(rows))
	for i, r := range rows {
		out[i] = r.c
	}
	return out
}

// YearGroup is one year of a hierarchical listing.
type YearGroup struct {
	Year   int
	Months []MonthGroup
}

// MonthGroup holds either Weeks (busy months) or Entries (flat), never both.
type MonthGroup struct {
	Month   time.Month
	Count   int
	Weeks   []WeekGroup
	Entries []Ref
}

// Name returns the English month name.
func (m MonthGroup) Name() string { return m.Month.String() }

// WeekGroup is a seven-day bucket of a month: days 1-7 are week 1.
type WeekGroup struct {
	Week    int
	Entries []Ref
}

// WeekOf returns the week-of-month bucket of a day.
func WeekOf(day int) int { return (day-1)/7 + 1 }

// Listing groups entries by year (descending), then month (ascending). A
// month with at least WeekThreshold entries is split into weeks.
func Listing(entries []*model.Entry, ref func(*model.Entry) Ref) []YearGroup {
	sorted := make([]*model.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	byYear := make(map[int]map[time.Month][]*model.Entry)
	for _, e := range sorted {
		y := e.Date.Year()
		if byYear[y] == nil {
			byYear[y] = make(map[time.Month][]*model.Entry)
		}
		byYear[y][e.Date.Month()] = append(byYear[y][e.Date.Month()], e)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	out := make([]YearGroup, 0, len(years))
	for _, y := range years {
		months := make([]time.Month, 0, len(byYear[y]))
		for m := range byYear[y] {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

		yg := YearGroup{Year: y}
		for _, m := range months {
			items := byYear[y][m]
			mg := MonthGroup{Month: m, Count: len(items)}
			if len(items) >= WeekThreshold {
				var cur *WeekGroup
				for _, e := range items {
					w := WeekOf(e.Date.Day())
					if cur == nil || cur.Week != w {
						mg.Weeks = append(mg.Weeks, WeekGroup{Week: w})
						cur = &mg.Weeks[len(mg.Weeks)-1]
					}
					cur.Entries = append(cur.Entries, ref(e))
				}
			} else {
				for _, e := range items {
					mg.Entries = append(mg.Entries, ref(e))
				}
			}
			yg.Months = append(yg.Months, mg)
		}
		out = append(out, yg)
	}
	return out
}

// InferGroup returns the first candidate whose member set intersects ids.
// Candidates are tried in the order given; the first intersecting one wins
// even when a later one shares more members.
func InferGroup[T any](candidates []T, members func(T) []int64, ids []int64) (T, bool) {
	var zero T
	if len(ids) == 0 {
		return zero, false
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, c := range candidates {
		for _, id := range members(c) {
			if _, ok := want[id]; ok {
				return c, true
			}
		}
	}
	return zero, false
}
