package optimize

import "github.com/armrt/armrt/ir"

// DefaultMaxIterations bounds the fixed-point loop Optimize runs when an
// Options value leaves MaxIterations at zero (spec.md §6
// "optimizer.max_iterations", default 20).
const DefaultMaxIterations = 20

// pass names the nine dataflow passes spec.md §4.3 describes, in the order
// it numbers them. Order within an iteration doesn't affect correctness,
// only how quickly the fixed point is reached.
type pass struct {
	name string
	run  func(*ir.Block) bool
}

var allPasses = [...]pass{
	{"constant_propagation", constantPropagation},
	{"dead_register_store_elimination", deadRegisterStoreElimination},
	{"dead_state_store_elimination", deadStateStoreElimination},
	{"dead_host_flag_store_elimination", deadHostFlagStoreElimination},
	{"dead_flag_value_store_elimination", deadFlagValueStoreElimination},
	{"dead_variable_store_elimination", deadVariableStoreElimination},
	{"bitwise_coalescence", bitwiseCoalescence},
	{"arithmetic_coalescence", arithmeticCoalescence},
	{"host_flags_coalescence", hostFlagsCoalescence},
}

// Options selects which of the nine passes run and bounds the fixed-point
// loop, per spec.md §6's optimizer.passes.* toggles and
// optimizer.max_iterations safety bound. The zero value enables no pass
// (only its zero MaxIterations falls back to DefaultMaxIterations); use
// DefaultOptions to enable every pass.
type Options struct {
	ConstantPropagation            bool
	DeadRegisterStoreElimination   bool
	DeadStateStoreElimination      bool
	DeadHostFlagStoreElimination   bool
	DeadFlagValueStoreElimination  bool
	DeadVariableStoreElimination   bool
	BitwiseCoalescence             bool
	ArithmeticCoalescence          bool
	HostFlagsCoalescence           bool

	// MaxIterations bounds the fixed-point loop; zero means
	// DefaultMaxIterations.
	MaxIterations int
}

// DefaultOptions enables every pass at the default iteration cap.
func DefaultOptions() Options {
	return Options{
		ConstantPropagation:           true,
		DeadRegisterStoreElimination:  true,
		DeadStateStoreElimination:     true,
		DeadHostFlagStoreElimination:  true,
		DeadFlagValueStoreElimination: true,
		DeadVariableStoreElimination:  true,
		BitwiseCoalescence:            true,
		ArithmeticCoalescence:         true,
		HostFlagsCoalescence:          true,
		MaxIterations:                 DefaultMaxIterations,
	}
}

// enabled reports whether opts selects p, matched by pass name.
func (o Options) enabled(name string) bool {
	switch name {
	case "constant_propagation":
		return o.ConstantPropagation
	case "dead_register_store_elimination":
		return o.DeadRegisterStoreElimination
	case "dead_state_store_elimination":
		return o.DeadStateStoreElimination
	case "dead_host_flag_store_elimination":
		return o.DeadHostFlagStoreElimination
	case "dead_flag_value_store_elimination":
		return o.DeadFlagValueStoreElimination
	case "dead_variable_store_elimination":
		return o.DeadVariableStoreElimination
	case "bitwise_coalescence":
		return o.BitwiseCoalescence
	case "arithmetic_coalescence":
		return o.ArithmeticCoalescence
	case "host_flags_coalescence":
		return o.HostFlagsCoalescence
	default:
		return false
	}
}

// Optimize repeatedly runs opts' enabled passes over b until none of them
// change anything or MaxIterations is reached (spec.md §6's safety bound
// on the fixed-point loop), then compacts variable numbering (spec.md
// §4.3).
func Optimize(b *ir.Block, opts Options) {
	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}

	for i := 0; i < maxIter; i++ {
		changed := false
		for _, p := range allPasses {
			if !opts.enabled(p.name) {
				continue
			}
			if p.run(b) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	b.RenameVariables()
}
