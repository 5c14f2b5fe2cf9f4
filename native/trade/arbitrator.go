package trade

// SelectArbitrator picks one arbitrator from the currency-matching set using
// the trade's creation time as the entropy source: the seconds value modulo
// 100 gives a draw in [0, 99] which is linearly mapped onto the set. The pick
// is deterministic and auditable from the stored creation time and registry
// contents, but a block timestamp is attacker-influenceable to a limited
// degree, so this is not cryptographically unpredictable.
func SelectArbitrator(arbitrators []Arbitrator, createdAt int64) (Arbitrator, error) {
	if len(arbitrators) == 0 {
		return Arbitrator{}, ErrNoArbitrator
	}
	draw := createdAt % 100
	if err := assertRandomIndexInRange(draw); err != nil {
		return Arbitrator{}, err
	}
	index := draw * int64(len(arbitrators)) / 100
	return arbitrators[index], nil
}
