// Package leaderboard computes the three-stage team ranking: by captures,
// by total held time, then a final ordering on the average of the two ranks.
// Pure functions over a snapshot; held time for currently owned territories
// accrues up to the supplied instant.
package leaderboard

import (
	"sort"
	"time"

	"github.com/zonewars/liveclient/go/internal/snapshot"
)

// Row is one team's scoring line.
type Row struct {
	TeamID       string  `json:"teamId"`
	Name         string  `json:"name"`
	Color        string  `json:"color"`
	Captures     int     `json:"captures"`
	TotalTimeMs  int64   `json:"totalTimeMs"`
	RankCaptures int     `json:"rankCaptures"`
	RankTime     int     `json:"rankTime"`
	AvgRank      float64 `json:"avgRank"`
}

// Standings holds the three orderings of the same rows.
type Standings struct {
	ByCaptures []Row `json:"byCaptures"`
	ByTime     []Row `json:"byTime"`
	Final      []Row `json:"final"`
}

// Compute derives the standings from a snapshot as of now.
func Compute(s *snapshot.Snapshot, now time.Time) Standings {
	nowMs := now.UnixMilli()
	rows := make([]Row, 0, len(s.Teams))
	for _, t := range s.Teams {
		st := s.TeamStats[t.ID]
		total := st.TotalTimeMs
		for _, z := range s.Territories {
			if z.OwnerTeamID == t.ID && z.CapturedAtMs > 0 {
				held := nowMs - z.CapturedAtMs
				if held > 0 {
					total += held
				}
			}
		}
		rows = append(rows, Row{
			TeamID:      t.ID,
			Name:        t.Name,
			Color:       t.Color,
			Captures:    st.Captures,
			TotalTimeMs: total,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Captures > rows[j].Captures })
	for i := range rows {
		rows[i].RankCaptures = i + 1
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalTimeMs > rows[j].TotalTimeMs })
	for i := range rows {
		rows[i].RankTime = i + 1
		rows[i].AvgRank = float64(rows[i].RankCaptures+rows[i].RankTime) / 2
	}

	byCaptures := append([]Row(nil), rows...)
	sort.SliceStable(byCaptures, func(i, j int) bool { return byCaptures[i].RankCaptures < byCaptures[j].RankCaptures })

	byTime := append([]Row(nil), rows...)

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AvgRank != rows[j].AvgRank {
			return rows[i].AvgRank < rows[j].AvgRank
		}
		return rows[i].Captures > rows[j].Captures
	})

	return Standings{ByCaptures: byCaptures, ByTime: byTime, Final: rows}
}
