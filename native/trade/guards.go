package trade

import "math/big"

// Shared transition validators. All are pure: they inspect their arguments and
// return a structured error, never touching state.

func assertOwnership(caller, expected [20]byte) error {
	if caller != expected {
		return &UnauthorizedError{Caller: caller, Expected: expected}
	}
	return nil
}

func assertBuyerOrSeller(caller, buyer, seller [20]byte) error {
	if caller != buyer && caller != seller {
		return &UnauthorizedError{Caller: caller, Expected: buyer}
	}
	return nil
}

func assertStateTransition(current, requiredFrom, target State) error {
	if current != requiredFrom {
		return &InvalidTransitionError{From: current, To: target}
	}
	return nil
}

func assertAmountInRange(min, max, amount *big.Int) error {
	if amount == nil || min == nil || max == nil {
		return &AmountOutOfRangeError{Amount: amount, Min: min, Max: max}
	}
	if amount.Cmp(min) < 0 || amount.Cmp(max) > 0 {
		return &AmountOutOfRangeError{
			Amount: new(big.Int).Set(amount),
			Min:    new(big.Int).Set(min),
			Max:    new(big.Int).Set(max),
		}
	}
	return nil
}

func assertMinLessThanMax(min, max *big.Int) error {
	if min == nil || max == nil || min.Cmp(max) > 0 {
		return &AmountOutOfRangeError{Min: min, Max: max}
	}
	return nil
}

func assertRandomIndexInRange(draw int64) error {
	if draw < 0 || draw > 99 {
		return ErrRandomIndexOutOfRange
	}
	return nil
}
