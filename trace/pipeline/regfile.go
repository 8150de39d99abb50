package pipeline

import "strconv"

// NumRegisters is the number of RV32I integer registers.
const NumRegisters = 32

// RegisterFile is a read-only view of x0-x31. x0 is hard-wired to zero.
type RegisterFile [NumRegisters]uint32

// ReadReg reads a register value. Out-of-range indices read as 0.
func (r *RegisterFile) ReadReg(reg uint8) uint32 {
	if reg >= NumRegisters {
		return 0
	}
	return r[reg]
}

// RegisterName returns the architectural name of a register, e.g. "x5".
func RegisterName(reg uint8) string {
	return "x" + strconv.Itoa(int(reg))
}
