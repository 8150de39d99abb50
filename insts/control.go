package insts

// ControlSignals describes which pipeline stages an instruction occupies
// and which register roles it touches.
type ControlSignals struct {
	// UsesExecute is true when the instruction does work in EX.
	UsesExecute bool
	// UsesMemory is true for loads and stores.
	UsesMemory bool
	// UsesWriteback is true when the instruction commits a register in WB.
	UsesWriteback bool
	// WritesRegister is true when a register is architecturally written.
	// It is always false for rd == x0.
	WritesRegister bool

	// UsesRs1 is true when the rs1 field is read from the register file.
	UsesRs1 bool
	// UsesRs2 is true when the rs2 field is read from the register file.
	UsesRs2 bool
}

// Classify derives control signals from a raw instruction word. It works
// on the opcode and rd fields directly and never fails; unknown opcodes
// classify as idle.
func Classify(word uint32) ControlSignals {
	if isNOP(word) {
		return ControlSignals{}
	}

	writes := rd(word) != 0

	switch opcode(word) {
	case OpcodeOp:
		return ControlSignals{
			UsesExecute: true, UsesWriteback: writes, WritesRegister: writes,
			UsesRs1: true, UsesRs2: true,
		}
	case OpcodeOpImm:
		return ControlSignals{
			UsesExecute: true, UsesWriteback: writes, WritesRegister: writes,
			UsesRs1: true,
		}
	case OpcodeLUI, OpcodeAUIPC:
		return ControlSignals{
			UsesExecute: true, UsesWriteback: writes, WritesRegister: writes,
		}
	case OpcodeLoad:
		return ControlSignals{
			UsesExecute: true, UsesMemory: true, UsesWriteback: writes, WritesRegister: writes,
			UsesRs1: true,
		}
	case OpcodeStore:
		return ControlSignals{
			UsesExecute: true, UsesMemory: true,
			UsesRs1: true, UsesRs2: true,
		}
	case OpcodeBranch:
		return ControlSignals{
			UsesExecute: true,
			UsesRs1:     true, UsesRs2: true,
		}
	case OpcodeJAL:
		return ControlSignals{
			UsesExecute: true, UsesWriteback: writes, WritesRegister: writes,
		}
	case OpcodeJALR:
		return ControlSignals{
			UsesExecute: true, UsesWriteback: writes, WritesRegister: writes,
			UsesRs1: true,
		}
	default:
		return ControlSignals{}
	}
}
