package leaderboard

import (
	"testing"
	"time"

	"github.com/zonewars/liveclient/go/internal/snapshot"
)

func fixture() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Teams: []snapshot.Team{
			{ID: "red", Name: "Red"},
			{ID: "blue", Name: "Blue"},
			{ID: "green", Name: "Green"},
		},
		TeamStats: map[string]snapshot.TeamStats{
			"red":   {Captures: 5, TotalTimeMs: 1000},
			"blue":  {Captures: 2, TotalTimeMs: 9000},
			"green": {Captures: 3, TotalTimeMs: 4000},
		},
	}
}

func TestComputeRanks(t *testing.T) {
	st := Compute(fixture(), time.UnixMilli(100000))

	// Captures: red(5) > green(3) > blue(2). Time: blue > green > red.
	if got := st.ByCaptures[0].TeamID; got != "red" {
		t.Errorf("top by captures = %s, want red", got)
	}
	if got := st.ByTime[0].TeamID; got != "blue" {
		t.Errorf("top by time = %s, want blue", got)
	}

	byID := map[string]Row{}
	for _, r := range st.Final {
		byID[r.TeamID] = r
	}
	if r := byID["red"]; r.RankCaptures != 1 || r.RankTime != 3 || r.AvgRank != 2 {
		t.Errorf("red ranks = %+v", r)
	}
	if r := byID["green"]; r.RankCaptures != 2 || r.RankTime != 2 || r.AvgRank != 2 {
		t.Errorf("green ranks = %+v", r)
	}
	if r := byID["blue"]; r.RankCaptures != 3 || r.RankTime != 1 || r.AvgRank != 2 {
		t.Errorf("blue ranks = %+v", r)
	}

	// All tied on average rank 2; captures break the tie.
	if st.Final[0].TeamID != "red" || st.Final[1].TeamID != "green" || st.Final[2].TeamID != "blue" {
		t.Errorf("final order = %v %v %v, want red green blue",
			st.Final[0].TeamID, st.Final[1].TeamID, st.Final[2].TeamID)
	}
}

func TestComputeAccruesLiveHeldTime(t *testing.T) {
	s := fixture()
	s.Territories = []snapshot.Territory{
		{ID: "z1", OwnerTeamID: "red", CapturedAtMs: 40000},
	}
	st := Compute(s, time.UnixMilli(100000))

	for _, r := range st.Final {
		if r.TeamID == "red" && r.TotalTimeMs != 1000+60000 {
			t.Errorf("red total time = %d, want 61000", r.TotalTimeMs)
		}
	}
}

func TestComputeIgnoresFutureCaptureTimestamps(t *testing.T) {
	s := fixture()
	s.Territories = []snapshot.Territory{
		{ID: "z1", OwnerTeamID: "red", CapturedAtMs: 200000},
	}
	st := Compute(s, time.UnixMilli(100000))
	for _, r := range st.Final {
		if r.TeamID == "red" && r.TotalTimeMs != 1000 {
			t.Errorf("red total time = %d, want unchanged 1000", r.TotalTimeMs)
		}
	}
}

func TestComputeEmptySnapshot(t *testing.T) {
	st := Compute(&snapshot.Snapshot{}, time.Now())
	if len(st.Final) != 0 || len(st.ByCaptures) != 0 || len(st.ByTime) != 0 {
		t.Errorf("empty snapshot should give empty standings: %+v", st)
	}
}
