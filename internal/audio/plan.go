package audio

import (
	"errors"
	"fmt"
	"math"
)

// Bounds locates one chunk on the source timeline, in seconds.
type Bounds struct {
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start"`
	EndSeconds   float64 `json:"end"`
}

// Duration returns the chunk length in seconds.
func (b Bounds) Duration() float64 {
	return b.EndSeconds - b.StartSeconds
}

// PlanChunks splits a duration into ceil(duration/target) consecutive chunks.
// Chunk i starts at i*target and ends at min((i+1)*target, duration).
func PlanChunks(durationSeconds, targetSeconds float64) ([]Bounds, error) {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return nil, fmt.Errorf("plan chunks: invalid duration %v", durationSeconds)
	}
	if targetSeconds <= 0 {
		return nil, fmt.Errorf("plan chunks: invalid target %v", targetSeconds)
	}
	count := int(math.Ceil(durationSeconds / targetSeconds))
	plan := make([]Bounds, count)
	for i := range plan {
		end := float64(i+1) * targetSeconds
		if end > durationSeconds || i == count-1 {
			end = durationSeconds
		}
		plan[i] = Bounds{Index: i, StartSeconds: float64(i) * targetSeconds, EndSeconds: end}
	}
	return plan, nil
}

// ValidatePlan checks that a persisted plan covers [0, duration] without gaps.
func ValidatePlan(plan []Bounds, durationSeconds float64) error {
	if len(plan) == 0 {
		return errors.New("chunk plan is empty")
	}
	const epsilon = 1e-6
	prevEnd := 0.0
	for i, b := range plan {
		if b.Index != i {
			return fmt.Errorf("chunk plan: entry %d has index %d", i, b.Index)
		}
		if math.Abs(b.StartSeconds-prevEnd) > epsilon {
			return fmt.Errorf("chunk plan: chunk %d starts at %.3f, expected %.3f", i, b.StartSeconds, prevEnd)
		}
		if b.EndSeconds <= b.StartSeconds {
			return fmt.Errorf("chunk plan: chunk %d is empty", i)
		}
		prevEnd = b.EndSeconds
	}
	if durationSeconds > 0 && math.Abs(prevEnd-durationSeconds) > epsilon {
		return fmt.Errorf("chunk plan: ends at %.3f, duration is %.3f", prevEnd, durationSeconds)
	}
	return nil
}
