package pipeline

// ForwardSource indicates where a forwarded operand comes from.
type ForwardSource uint8

const (
	// ForwardNone means the operand is read from the register file.
	ForwardNone ForwardSource = iota
	// ForwardFromMemory means the operand is bypassed from the EX/MEM register.
	ForwardFromMemory
	// ForwardFromWriteback means the operand is bypassed from the MEM/WB register.
	ForwardFromWriteback
)

// String returns a short name for the source.
func (f ForwardSource) String() string {
	switch f {
	case ForwardNone:
		return "none"
	case ForwardFromMemory:
		return "EX/MEM"
	case ForwardFromWriteback:
		return "MEM/WB"
	default:
		return "invalid"
	}
}

// Valid returns true if f is one of the defined sources.
func (f ForwardSource) Valid() bool {
	return f <= ForwardFromWriteback
}

// ForwardingSignals contains the forwarding mux selects of both ALU
// operands. The two muxes are independent.
type ForwardingSignals struct {
	OperandASource ForwardSource
	OperandBSource ForwardSource
}

// HazardSignals contains stall and flush control signals.
type HazardSignals struct {
	// FetchStall indicates the IF stage holds its PC.
	FetchStall bool
	// DecodeStall indicates the ID stage holds its instruction.
	DecodeStall bool
	// Flush indicates the IF and ID slots are squashed this cycle.
	Flush bool
}

// Any returns true if any hazard signal is asserted.
func (h HazardSignals) Any() bool {
	return h.FetchStall || h.DecodeStall || h.Flush
}
