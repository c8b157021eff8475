package pinwatch

import (
	"strconv"
	"strings"
)

// Inferred tool identity, exported as an integer for status consumers.
const (
	// ToolUnknown means the sensors do not resolve to a tool identity.
	ToolUnknown = -2
	// ToolUnmounted means no tool is held and every bay is occupied.
	ToolUnmounted = -1
)

// engagedLabel is the reserved sensor label for "tool engaged at the
// carriage". All other labels of the form t<i> are bay occupancy sensors.
const engagedLabel = "e"

// Diagnostics is the observability tuple produced by each inference pass.
type Diagnostics struct {
	N       int  // configured tool count
	Ex      int  // engagement sensor value
	S       int  // sum of bay occupancy values
	Empties int  // bays reporting empty
	Bad     bool // snapshot contained a value outside {0,1}
}

// parseToolIndex extracts the bay index from a t<i> label.
func parseToolIndex(label string) (int, bool) {
	if !strings.HasPrefix(label, "t") {
		return 0, false
	}
	i, err := strconv.Atoi(label[1:])
	if err != nil {
		return 0, false
	}
	return i, true
}

// InferTool computes the tool identity from a sensor snapshot and the
// configured tool count. Missing sensors read as 0. The decision table is
// deliberately conservative: it commits to a tool index only when the
// engagement signal and an exactly-one-vacancy signal agree, and reports
// ToolUnknown for every other combination, including the transient states
// seen mid tool-change.
func InferTool(state map[string]int, n int) (int, Diagnostics) {
	if n < 1 {
		return ToolUnknown, Diagnostics{N: n, Bad: true}
	}

	ex := state[engagedLabel]
	bad := ex != 0 && ex != 1

	sum := 0
	empties := 0
	emptyIdx := -1
	for i := 0; i < n; i++ {
		occ := state["t"+strconv.Itoa(i)]
		if occ != 0 && occ != 1 {
			bad = true
		}
		sum += occ
		if occ == 0 {
			empties++
			emptyIdx = i
		}
	}

	diag := Diagnostics{N: n, Ex: ex, S: sum, Empties: empties, Bad: bad}

	var ct int
	switch {
	case bad:
		ct = ToolUnknown
	case ex == 0 && sum == n:
		ct = ToolUnmounted
	case ex == 1 && sum == n-1 && empties == 1:
		ct = emptyIdx
	default:
		ct = ToolUnknown
	}
	return ct, diag
}
