// Package grouping partitions an ordered message list into calendar-date
// groups. Everything here is pure: time and zone are inputs, so grouping
// and labeling are testable without wall-clock coupling.
package grouping

import (
	"sort"
	"time"

	"github.com/dkovac/brim/internal/domain"
)

// DateKey derives the partition key for one message: the ISO date of its
// commit timestamp in loc, or domain.PendingKey while the write is in
// flight. ISO keys sort correctly as plain strings.
func DateKey(m *domain.Message, loc *time.Location) string {
	if m.Pending() {
		return domain.PendingKey
	}
	return m.CommittedAt.In(loc).Format("2006-01-02")
}

// Group partitions messages by DateKey. The partition is stable: each
// message keeps its position relative to the others in its group. The
// pending group, if present, sorts first; dated groups follow in
// ascending calendar order.
func Group(msgs []domain.Message, loc *time.Location) []domain.DateGroup {
	index := make(map[string]int)
	groups := make([]domain.DateGroup, 0)

	for _, m := range msgs {
		key := DateKey(&m, loc)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, domain.DateGroup{DateKey: key})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].DateKey, groups[j].DateKey
		if a == domain.PendingKey {
			return b != domain.PendingKey
		}
		if b == domain.PendingKey {
			return false
		}
		return a < b
	})

	return groups
}

// Label maps a date key to its display heading. Evaluated at render time
// against the caller's current clock, so historical data loaded earlier
// still labels "Today" correctly after midnight.
func Label(dateKey string, now time.Time, loc *time.Location) string {
	if dateKey == domain.PendingKey {
		return "Sending…"
	}
	today := now.In(loc).Format("2006-01-02")
	yesterday := now.In(loc).AddDate(0, 0, -1).Format("2006-01-02")
	switch dateKey {
	case today:
		return "Today"
	case yesterday:
		return "Yesterday"
	}
	t, err := time.ParseInLocation("2006-01-02", dateKey, loc)
	if err != nil {
		return dateKey
	}
	return t.Format("Monday, January 2, 2006")
}
