package domain

import "testing"

func intp(v int) *int { return &v }

func TestEligible(t *testing.T) {
	tests := []struct {
		name   string
		active bool
		index  *int
		seq    int
		want   bool
	}{
		{"never evaluated", true, nil, 1, true},
		{"never evaluated, later batch", true, nil, 7, true},
		{"evaluated previous sequence", true, intp(2), 3, true},
		{"evaluated same sequence", true, intp(3), 3, false},
		{"evaluated far in the past", true, intp(1), 9, true},
		{"index ahead of sequence", true, intp(5), 3, false},
		{"inactive employee", false, nil, 1, false},
		{"inactive with old index", false, intp(1), 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(tt.active, tt.index, tt.seq); got != tt.want {
				t.Errorf("Eligible(%v, %v, %d) = %v, want %v", tt.active, tt.index, tt.seq, got, tt.want)
			}
		})
	}
}

func TestCheckConsecutiveInactivations(t *testing.T) {
	tests := []struct {
		name      string
		history   []InactivationRecord
		proposed  int
		wantAllow bool
		wantCount int
	}{
		{"no history", nil, 3, true, 0},
		{"inactivated long ago", []InactivationRecord{{1}}, 4, true, 0},
		{"inactivated previous batch", []InactivationRecord{{3}}, 4, false, 1},
		{"two consecutive priors", []InactivationRecord{{2}, {3}}, 4, false, 2},
		{"gap breaks the run", []InactivationRecord{{1}, {3}}, 4, false, 1},
		{"run not adjacent to proposal", []InactivationRecord{{1}, {2}}, 5, true, 0},
		{"unordered history", []InactivationRecord{{5}, {3}, {4}}, 6, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckConsecutiveInactivations(tt.history, tt.proposed)
			if got.Allowed != tt.wantAllow {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllow)
			}
			if got.ConsecutiveCount != tt.wantCount {
				t.Errorf("ConsecutiveCount = %d, want %d", got.ConsecutiveCount, tt.wantCount)
			}
			if !got.Allowed && !got.Forceable {
				t.Error("blocked result must be forceable")
			}
		})
	}
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name  string
		tally Tally
		want  BatchStatus
	}{
		{"empty batch stays active", Tally{}, BatchActive},
		{"in progress", Tally{Released: 5, Concluded: 2}, BatchActive},
		{"all concluded", Tally{Released: 5, Concluded: 5}, BatchConcluded},
		{"concluded with inactivations", Tally{Released: 5, Concluded: 3, Inactivated: 2}, BatchConcluded},
		{"all inactivated", Tally{Released: 4, Inactivated: 4}, BatchCancelled},
		{"only inactivations but not all", Tally{Released: 4, Inactivated: 3}, BatchActive},
		{"single evaluation concluded", Tally{Released: 1, Concluded: 1}, BatchConcluded},
		{"single evaluation inactivated", Tally{Released: 1, Inactivated: 1}, BatchCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateStatus(tt.tally); got != tt.want {
				t.Errorf("AggregateStatus(%+v) = %s, want %s", tt.tally, got, tt.want)
			}
		})
	}
}
