package launch

import "time"

// Signal names reported alongside a correlation result.
const (
	SignalClassMatch     = "class_match"
	SignalTimeDelta      = "time_delta_bucket"
	SignalWorkspaceMatch = "workspace_match"
)

// Score computes the bounded confidence of one launch/window pairing as a
// sum of independent signals:
//
//	class equality     +0.5 (mismatch scores zero overall)
//	time delta  < 1s   +0.3
//	            1s-2s  +0.2
//	            2s-5s  +0.1
//	workspace equality +0.2
func Score(launch PendingLaunch, window WindowInfo) (float64, map[string]string) {
	signals := make(map[string]string, 3)
	if launch.ExpectedClass != window.Class {
		signals[SignalClassMatch] = "false"
		return 0, signals
	}
	score := 0.5
	signals[SignalClassMatch] = "true"

	delta := window.Timestamp.Sub(launch.RegisteredAt)
	bucket, weight := timeBucket(delta)
	score += weight
	signals[SignalTimeDelta] = bucket

	if launch.Workspace != 0 && window.Workspace == launch.Workspace {
		score += 0.2
		signals[SignalWorkspaceMatch] = "true"
	} else {
		// No penalty: workspace mismatch never disqualifies.
		signals[SignalWorkspaceMatch] = "false"
	}
	return score, signals
}

// timeBucket weights the window-to-launch delay. Out-of-order delivery can
// produce a slightly negative delta; that still counts as immediate.
func timeBucket(delta time.Duration) (string, float64) {
	switch {
	case delta < time.Second:
		return "<1s", 0.3
	case delta < 2*time.Second:
		return "1-2s", 0.2
	case delta <= 5*time.Second:
		return "2-5s", 0.1
	default:
		return ">5s", 0
	}
}
