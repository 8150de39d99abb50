package pipeline

// DecodeOperands holds the register indices resolved by the ID stage.
// The hardware decode stage is authoritative; these need not match what
// parsing the ID instruction word would infer.
type DecodeOperands struct {
	Rs1 uint8
	Rs2 uint8
	Rd  uint8
}

// ExecuteResult holds the EX stage outputs.
type ExecuteResult struct {
	// OperandA and OperandB are the ALU inputs after forwarding muxes.
	OperandA uint32
	OperandB uint32

	// ALUResult is the ALU output (address for load/store).
	ALUResult uint32

	// BranchTaken is set when EX redirects the PC.
	BranchTaken bool

	// BranchTarget is the redirect address. Meaningless unless BranchTaken.
	BranchTarget uint32
}

// MemoryAccess holds the MEM stage data-memory port.
type MemoryAccess struct {
	WriteEnable bool
	Address     uint32
	WriteData   uint32
}

// WritebackResult holds the WB stage register-file write port.
// DestRegister and WriteData are meaningless unless WriteEnable is set.
type WritebackResult struct {
	WriteEnable  bool
	DestRegister uint8
	WriteData    uint32
}

// Committed returns true if this cycle architecturally writes a register.
// Writes to x0 are discarded.
func (w WritebackResult) Committed() bool {
	return w.WriteEnable && w.DestRegister != 0
}
