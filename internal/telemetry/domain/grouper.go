package telemetry

import "sort"

// GroupStats counts what happened to the observations of one grouping pass.
type GroupStats struct {
	Observations      int `json:"observations"`
	DroppedTimestamps int `json:"dropped_timestamps"`
	DroppedFields     int `json:"dropped_fields"`
	CoercedZero       int `json:"coerced_zero"`
	// CoercedByField breaks CoercedZero down per field.
	CoercedByField map[Field]int `json:"coerced_by_field,omitempty"`
}

// Group folds observations into one record per distinct instant, ordered by
// instant ascending.
func Group(observations []Observation) []Record {
	records, _ := GroupWithStats(observations)
	return records
}

// GroupWithStats is Group that also reports dropped and coerced observations.
//
// Observations may arrive in any order. When the same field is seen twice
// for one instant the later observation wins.
func GroupWithStats(observations []Observation) ([]Record, GroupStats) {
	stats := GroupStats{Observations: len(observations)}
	byInstant := make(map[instant]Record, len(observations))
	keys := make([]instant, 0)

	for _, obs := range observations {
		ts, err := NormalizeTimestamp(obs.Timestamp)
		if err != nil {
			stats.DroppedTimestamps++
			continue
		}
		field, err := ParseField(obs.Field)
		if err != nil {
			stats.DroppedFields++
			continue
		}
		value, ok := CoerceChecked(obs.Value)
		if !ok {
			stats.CoercedZero++
			if stats.CoercedByField == nil {
				stats.CoercedByField = make(map[Field]int)
			}
			stats.CoercedByField[field]++
		}

		key := instant{sec: ts.Unix(), nsec: ts.Nanosecond()}
		record, seen := byInstant[key]
		if !seen {
			record = NewRecord(ts)
			keys = append(keys, key)
		}
		byInstant[key] = record.With(field, value)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })
	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		records = append(records, byInstant[key])
	}
	return records, stats
}

// instant is a map key that stays exact across the whole epoch-millisecond
// range, which UnixNano does not.
type instant struct {
	sec  int64
	nsec int
}

func (a instant) before(b instant) bool {
	if a.sec != b.sec {
		return a.sec < b.sec
	}
	return a.nsec < b.nsec
}
