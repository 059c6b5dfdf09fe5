package rule

import (
	"sync"
	"time"
)

// Ruleset is an ordered sequence of rules plus an implicit default target
// applied when no rule decides the device. Rules are added with Append and
// removed with RemoveID. IDs are assigned on Append and are stable for the
// lifetime of the Ruleset.
type Ruleset struct {
	mu           sync.RWMutex
	rules        []*Rule
	nextID       uint32
	defaultState Target
}

// NewRuleset returns an empty Ruleset with the given default target,
// applied when evaluation falls through without a decision. Per spec, the
// default target is normally Block.
func NewRuleset(defaultTarget Target) *Ruleset {
	return &Ruleset{nextID: 1, defaultState: defaultTarget}
}

// DefaultTarget reports the target applied when no rule decides.
func (rs *Ruleset) DefaultTarget() Target {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.defaultState
}

// SetDefaultTarget replaces the fallback target, returning the prior value
// so callers can restore it.
func (rs *Ruleset) SetDefaultTarget(t Target) Target {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	prev := rs.defaultState
	rs.defaultState = t
	return prev
}

// Append assigns the next stable ID to r, adds it to the end of the
// ruleset, and returns the assigned ID.
func (rs *Ruleset) Append(r *Rule) uint32 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r.ID = rs.nextID
	rs.nextID++
	rs.rules = append(rs.rules, r)
	return r.ID
}

// Rules returns a snapshot slice of the ruleset's current rules, in
// evaluation order.
func (rs *Ruleset) Rules() []*Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// RemoveID removes the rule with the given ID, reporting whether a rule
// was found.
func (rs *Ruleset) RemoveID(id uint32) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for i, r := range rs.rules {
		if r.ID == id {
			rs.rules = append(rs.rules[:i:i], rs.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Evaluate walks the ruleset in order against dev, returning the target of
// the first matching rule whose target does not continue (per
// Target.Continues), or the default target if none decides.
func (rs *Ruleset) Evaluate(dev Observable, now time.Time, query DeviceQuery) (Target, *Rule) {
	rs.mu.RLock()
	rules := make([]*Rule, len(rs.rules))
	copy(rules, rs.rules)
	def := rs.defaultState
	rs.mu.RUnlock()

	ctx := EvalContext{Device: dev, Now: now, Query: query}
	for _, r := range rules {
		if !r.Matches(ctx) {
			continue
		}
		if r.Target.Continues() {
			continue
		}
		return r.Target, r
	}
	return def, nil
}
