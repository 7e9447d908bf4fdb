package selectz

// Compose builds a new Selector from a fixed list of input selectors and a
// combiner. Given state, the composed selector evaluates every input selector
// against the same state in declaration order, collects one result per input,
// and applies the combiner to the collected results positionally. The
// combiner's result is returned unchanged.
//
// Order and arity are strict: swapping two inputs changes which positional
// argument the combiner receives for each dependency. Composed selectors are
// ordinary selectors and can be used as inputs to further Compose calls,
// enabling arbitrary composition depth.
//
// No caching happens at this layer - every invocation re-evaluates every
// input. Memoization lives above, in the runtime's registries and in the
// reactive host's own dependency tracking.
//
// A nil combiner is an immediate *CompositionError. Zero inputs are allowed
// and make the result a constant selector (the combiner is called with no
// arguments).
//
// Example:
//
//	area, err := selectz.Compose("area",
//	    func(vals ...any) any { return vals[0].(int) * vals[1].(int) },
//	    width, height,
//	)
func Compose(name Name, combiner Combiner, inputs ...Selector) (Selector, error) {
	if combiner == nil {
		return Selector{}, &CompositionError{
			Name:   name,
			Reason: "combiner must not be nil",
		}
	}
	for _, input := range inputs {
		if !input.valid() {
			return Selector{}, &CompositionError{
				Name:   name,
				Reason: "input selectors must be built with Select or Compose",
			}
		}
	}

	// Capture the input list so later mutation of the caller's slice cannot
	// change which dependencies the composition reads.
	deps := make([]Selector, len(inputs))
	copy(deps, inputs)

	return Select(name, func(v View) any {
		values := make([]any, len(deps))
		for i, dep := range deps {
			values[i] = dep.fn(v)
		}
		return combiner(values...)
	}), nil
}

// MustCompose is like Compose but panics on an invalid composition. It
// simplifies package-level selector declarations where the combiner is a
// literal and cannot be nil.
//
//	var area = selectz.MustCompose("area", multiply, width, height)
func MustCompose(name Name, combiner Combiner, inputs ...Selector) Selector {
	s, err := Compose(name, combiner, inputs...)
	if err != nil {
		panic(err)
	}
	return s
}
