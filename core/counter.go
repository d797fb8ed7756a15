package core

// Counter width is chosen at build time. The default build stores every cost
// counter in 8 bits and saturates silently. Building with -tags drtdebug widens
// the counters to 16 bits and turns any overflow or underflow into a panic
// carrying an *ArithmeticError.

// MaxCounter is the largest value a node cost counter can hold.
const MaxCounter = 1<<costBits - 1

func addToCounter(augend counter, summand uint32) counter {
	result := uint64(augend) + uint64(summand)
	if result > MaxCounter {
		if debugCounters {
			panic(&ArithmeticError{Op: "add", Value: uint64(augend), Delta: uint64(summand), Limit: MaxCounter})
		}
		result = MaxCounter
	}
	return counter(result)
}

func subFromCounter(minuend counter, subtrahend uint32) counter {
	if uint64(subtrahend) > uint64(minuend) {
		if debugCounters {
			panic(&ArithmeticError{Op: "sub", Value: uint64(minuend), Delta: uint64(subtrahend), Limit: MaxCounter})
		}
		return 0
	}
	return minuend - counter(subtrahend)
}
