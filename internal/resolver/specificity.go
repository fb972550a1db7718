package resolver

import "modelc/internal/model"

// genericMask marks the parameters a candidate declares as a bare type
// parameter of its own.
func genericMask(sig model.Signature) []bool {
	mask := make([]bool, len(sig.Params))
	for i, p := range sig.Params {
		mask[i] = p.Type.Param != nil && p.Type.Param.Owner == sig.Fn
	}
	return mask
}

// beats reports whether a is strictly more specific than b: a concrete
// parameter wherever b has one, and at least one concrete parameter where b
// only matched through a type parameter.
func beats(a, b []bool) bool {
	strict := false
	for i := range a {
		if a[i] && !b[i] {
			return false
		}
		if !a[i] && b[i] {
			strict = true
		}
	}
	return strict
}

// mostSpecific returns the unique attempt that beats every other one.
func mostSpecific(attempts []*attempt) (*attempt, bool) {
	masks := make([][]bool, len(attempts))
	for i, a := range attempts {
		masks[i] = genericMask(a.sig)
	}
	for i, a := range attempts {
		wins := true
		for j := range attempts {
			if i != j && !beats(masks[i], masks[j]) {
				wins = false
				break
			}
		}
		if wins {
			return a, true
		}
	}
	return nil, false
}
