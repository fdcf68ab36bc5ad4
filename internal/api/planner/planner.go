package planner

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wanderhk/tourism-ai/internal/types"
)

const (
	dayStartHour  = 9
	transferMin   = 30
	maxDayEndHour = 22
	defaultDurMin = 90

	// dayLengthMin is the schedulable window between day start and the
	// evening cutoff, in minutes.
	dayLengthMin = (maxDayEndHour - dayStartHour) * 60
)

// Planner assigns candidate activities to days and time slots honoring
// pace, budget, duration and group-size constraints. It is fully
// deterministic: the same request and candidate slice always yield the
// same plans.
type Planner struct{}

func New() *Planner {
	return &Planner{}
}

// Plan builds one DayPlan per requested day from the candidate pool.
//
// Candidates are filtered to the requested interests (all pass when none
// are given), then each day greedily picks the highest-scoring unused
// candidates until the pace target is met, the pool runs dry, or the next
// pick would run past the evening cutoff. A pick is skipped, not forced,
// when it would push the day over its budget cap. Later days running short
// of the target is a valid outcome. When the request names an
// accommodation area, each day's first pick gets the same area-proximity
// bonus a mid-day transfer would.
func (p *Planner) Plan(req types.ItineraryRequest, candidates []types.CandidateActivity) []types.DayPlan {
	target := req.TravelStyle.TargetPerDay()
	dayCap := req.Budget.DailyCap()

	pool := filterByInterests(candidates, req.Interests)
	used := make(map[string]bool, len(pool))

	plans := make([]types.DayPlan, 0, req.Duration)
	for day := 1; day <= req.Duration; day++ {
		plan := types.DayPlan{Day: day, EstimatedCost: decimal.Zero}
		remaining := dayCap
		prevArea := strings.TrimSpace(req.Accommodation)
		minute := 0

		for len(plan.Activities) < target {
			pick := nextCandidate(pool, used, req.Interests, prevArea, remaining)
			if pick == nil {
				break
			}

			dur := pick.DurationMin
			if dur <= 0 {
				dur = defaultDurMin
			}
			// A pick that would run past the evening cutoff closes the
			// day; the candidate stays available for the next one.
			if minute+dur > dayLengthMin {
				break
			}
			used[pick.ID] = true

			plan.Activities = append(plan.Activities, types.Activity{
				Name:        pick.Name,
				Time:        slotTime(minute),
				DurationMin: dur,
				Cost:        pick.Cost,
				Description: pick.Description,
				Transport:   pick.Transport,
				Tip:         pick.Tip,
			})
			plan.EstimatedCost = plan.EstimatedCost.Add(pick.Cost)
			remaining = remaining.Sub(pick.Cost)
			prevArea = pick.Area
			minute += dur + transferMin
		}

		plan.TransportInfo = transportSummary(plan.Activities)
		plans = append(plans, plan)
	}
	return plans
}

// slotTime formats an offset in minutes from the day start as a wall-clock
// time.
func slotTime(minuteOfDay int) string {
	return time.Date(0, 1, 1, dayStartHour, minuteOfDay, 0, 0, time.UTC).Format("15:04")
}

// TotalCost sums the per-day estimates.
func TotalCost(plans []types.DayPlan) decimal.Decimal {
	total := decimal.Zero
	for _, p := range plans {
		total = total.Add(p.EstimatedCost)
	}
	return total
}

func filterByInterests(candidates []types.CandidateActivity, interests []string) []types.CandidateActivity {
	if len(interests) == 0 {
		out := make([]types.CandidateActivity, len(candidates))
		copy(out, candidates)
		return out
	}
	var out []types.CandidateActivity
	for _, c := range candidates {
		if interestMatches(c, interests) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func interestMatches(c types.CandidateActivity, interests []string) int {
	matches := 0
	for _, want := range interests {
		for _, have := range c.Interests {
			if strings.EqualFold(want, have) {
				matches++
				break
			}
		}
	}
	return matches
}

// nextCandidate returns the best unused candidate that fits the remaining
// day budget, or nil. Score is interest-match count plus an area-proximity
// bonus; ties fall back to rating, then to original candidate order (the
// sort is stable, so equal keys keep their input position).
func nextCandidate(pool []types.CandidateActivity, used map[string]bool, interests []string, prevArea string, remaining decimal.Decimal) *types.CandidateActivity {
	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(pool))
	for i, c := range pool {
		if used[c.ID] {
			continue
		}
		score := interestMatches(c, interests)
		if prevArea != "" && c.Area != "" && strings.EqualFold(c.Area, prevArea) {
			score++
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		return pool[a.idx].Rating > pool[b.idx].Rating
	})

	// Never silently over-budget a day: walk down the ranking until a
	// candidate fits, skipping the ones that do not.
	for _, r := range ranked {
		c := pool[r.idx]
		if c.Cost.GreaterThan(remaining) {
			continue
		}
		return &pool[r.idx]
	}
	return nil
}

func transportSummary(activities []types.Activity) string {
	seen := make(map[string]bool)
	var notes []string
	for _, a := range activities {
		if a.Transport == "" || seen[a.Transport] {
			continue
		}
		seen[a.Transport] = true
		notes = append(notes, a.Transport)
	}
	return strings.Join(notes, "; ")
}
