package ir

// Op identifies a step kind of the validation language.
//
// Names are case- and exact-text-sensitive ("Set BIOS knob", not
// "Set Bios Knob"). High-level ops only appear in authoring input and are
// lowered by the HLS translator; low-level ops are understood by the code
// generator and the step executor.
type Op int

const (
	OpUnknown Op = iota

	// High-level steps.
	OpBootTo
	OpResetTo
	OpSetFeature
	OpRunTCDBlock

	// Low-level steps.
	OpPrepare
	OpStep
	OpRepeat
	OpEnd
	OpLog
	OpWait
	OpWaitFor
	OpReset
	OpSwitchAC
	OpSwitchDC
	OpClearCMOS
	OpCheckEnvironment
	OpCheckPowerState
	OpExecuteCommand
	OpExecuteHostCommand
	OpExecuteITPCommand
	OpSetBIOSKnob

	opCount
)

var opNames = [opCount]string{
	OpUnknown:            "",
	OpBootTo:             "Boot to",
	OpResetTo:            "Reset to",
	OpSetFeature:         "Set Feature",
	OpRunTCDBlock:        "Run TCD Block",
	OpPrepare:            "PREPARE",
	OpStep:               "STEP",
	OpRepeat:             "Repeat",
	OpEnd:                "End",
	OpLog:                "Log",
	OpWait:               "Wait",
	OpWaitFor:            "Wait for",
	OpReset:              "Reset",
	OpSwitchAC:           "Switch AC",
	OpSwitchDC:           "Switch DC",
	OpClearCMOS:          "Clear CMOS",
	OpCheckEnvironment:   "Check Environment",
	OpCheckPowerState:    "Check Power State",
	OpExecuteCommand:     "Execute Command",
	OpExecuteHostCommand: "Execute Host Command",
	OpExecuteITPCommand:  "Execute ITP Command",
	OpSetBIOSKnob:        "Set BIOS knob",
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, opCount)
	for op := OpUnknown + 1; op < opCount; op++ {
		m[opNames[op]] = op
	}
	return m
}()

// String returns the operation name as written in step lines.
func (o Op) String() string {
	if o < 0 || o >= opCount {
		return ""
	}
	return opNames[o]
}

// ParseOp resolves an operation name. The match is exact.
func ParseOp(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}

// IsHighLevel reports whether the op is only valid in HLS input.
func (o Op) IsHighLevel() bool {
	return o >= OpBootTo && o <= OpRunTCDBlock
}

// IsLowLevel reports whether the op is understood by the code generator
// and the step executor.
func (o Op) IsLowLevel() bool {
	return o >= OpPrepare && o < opCount
}

// IsBlockLike reports whether HLS output for this op is set apart from its
// neighbours by blank lines.
func (o Op) IsBlockLike() bool {
	return o == OpBootTo || o == OpResetTo || o == OpRunTCDBlock
}

// IsStructural reports whether the op is a Step/Prepare/Repeat/End marker.
func (o Op) IsStructural() bool {
	switch o {
	case OpPrepare, OpStep, OpRepeat, OpEnd:
		return true
	}
	return false
}

// AllOps returns every known op in declaration order.
func AllOps() []Op {
	ops := make([]Op, 0, opCount-1)
	for op := OpUnknown + 1; op < opCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

// OpNames returns every known op name in declaration order.
func OpNames() []string {
	names := make([]string, 0, opCount-1)
	for _, op := range AllOps() {
		names = append(names, op.String())
	}
	return names
}
