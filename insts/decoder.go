package insts

// Op represents an RV32I operation.
type Op uint8

// RV32I operations.
const (
	OpUnknown Op = iota
	OpNOP
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpOP // register-register op outside the recognized set
	OpADDI
	OpXORI
	OpORI
	OpANDI
	OpOPIMM // register-immediate op outside the recognized set
	OpLW
	OpSW
	OpBEQ
	OpBNE
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpECALL
	OpEBREAK
)

var opNames = [...]string{
	OpUnknown: "unknown",
	OpNOP:     "nop",
	OpADD:     "add",
	OpSUB:     "sub",
	OpSLL:     "sll",
	OpSLT:     "slt",
	OpSLTU:    "sltu",
	OpXOR:     "xor",
	OpSRL:     "srl",
	OpSRA:     "sra",
	OpOR:      "or",
	OpAND:     "and",
	OpOP:      "op",
	OpADDI:    "addi",
	OpXORI:    "xori",
	OpORI:     "ori",
	OpANDI:    "andi",
	OpOPIMM:   "opimm",
	OpLW:      "lw",
	OpSW:      "sw",
	OpBEQ:     "beq",
	OpBNE:     "bne",
	OpLUI:     "lui",
	OpAUIPC:   "auipc",
	OpJAL:     "jal",
	OpJALR:    "jalr",
	OpECALL:   "ecall",
	OpEBREAK:  "ebreak",
}

// String returns the assembler mnemonic of the operation.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return opNames[OpUnknown]
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatBubble         // Zero word or an OP-IMM with rd, rs1 and imm zero
	FormatR              // Register-register
	FormatI              // Register-immediate, loads, jalr
	FormatS              // Stores
	FormatB              // Conditional branches
	FormatU              // Upper immediate
	FormatJ              // Jump and link
	FormatSystem         // ecall / ebreak
)

// Major opcodes (bits [6:0]).
const (
	OpcodeLoad   uint32 = 0x03
	OpcodeOpImm  uint32 = 0x13
	OpcodeAUIPC  uint32 = 0x17
	OpcodeStore  uint32 = 0x23
	OpcodeOp     uint32 = 0x33
	OpcodeLUI    uint32 = 0x37
	OpcodeBranch uint32 = 0x63
	OpcodeJALR   uint32 = 0x67
	OpcodeJAL    uint32 = 0x6F
	OpcodeSystem uint32 = 0x73
)

// CanonicalNOP is the encoding of addi x0, x0, 0.
const CanonicalNOP uint32 = 0x00000013

// Instruction represents a decoded RV32I instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format
	Raw    uint32 // Original instruction word

	// Register fields. Only the roles used by Format are populated;
	// the others stay zero even when the raw bits are not.
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Imm is the sign-extended immediate. For FormatB and FormatJ it is
	// the PC-relative byte offset; for FormatU it is the 20-bit upper
	// immediate field (bits [31:12]).
	Imm int32
}

// Mnemonic returns the assembler mnemonic.
func (i *Instruction) Mnemonic() string {
	return i.Op.String()
}

// IsBubble reports whether the instruction is a pipeline bubble.
func (i *Instruction) IsBubble() bool {
	return i.Format == FormatBubble
}

// Target resolves the branch or jump target for an instruction fetched at
// pc. It returns false for formats without a PC-relative target.
func (i *Instruction) Target(pc uint32) (uint32, bool) {
	if i.Format != FormatB && i.Format != FormatJ {
		return 0, false
	}
	return pc + uint32(i.Imm), true
}

// Decoder decodes RV32I machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word into a freshly allocated
// Instruction.
func Decode(word uint32) Instruction {
	var inst Instruction
	decodeInto(word, &inst)
	return inst
}

// Decode decodes a 32-bit RV32I instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{}
	decodeInto(word, inst)
	return inst
}

func decodeInto(word uint32, inst *Instruction) {
	*inst = Instruction{Op: OpUnknown, Format: FormatUnknown, Raw: word}

	if isNOP(word) {
		inst.Op = OpNOP
		inst.Format = FormatBubble
		return
	}

	switch opcode(word) {
	case OpcodeOp:
		decodeOp(word, inst)
	case OpcodeOpImm:
		decodeOpImm(word, inst)
	case OpcodeLoad:
		inst.Op = OpLW
		setI(word, inst)
	case OpcodeStore:
		decodeStore(word, inst)
	case OpcodeBranch:
		decodeBranch(word, inst)
	case OpcodeLUI:
		inst.Op = OpLUI
		setU(word, inst)
	case OpcodeAUIPC:
		inst.Op = OpAUIPC
		setU(word, inst)
	case OpcodeJAL:
		decodeJAL(word, inst)
	case OpcodeJALR:
		if funct3(word) == 0 {
			inst.Op = OpJALR
			setI(word, inst)
		}
	case OpcodeSystem:
		decodeSystem(word, inst)
	}
}

// isNOP matches the zero word and any OP-IMM with rd, rs1 and imm all
// zero. Decode and Classify share it so a bubble is one representation.
func isNOP(word uint32) bool {
	if word == 0 {
		return true
	}
	return opcode(word) == OpcodeOpImm && rd(word) == 0 && rs1(word) == 0 && immI(word) == 0
}

// Field extraction, bits numbered from 0 = LSB.
func opcode(word uint32) uint32 { return word & 0x7F }
func rd(word uint32) uint8      { return uint8((word >> 7) & 0x1F) }
func funct3(word uint32) uint32 { return (word >> 12) & 0x7 }
func rs1(word uint32) uint8     { return uint8((word >> 15) & 0x1F) }
func rs2(word uint32) uint8     { return uint8((word >> 20) & 0x1F) }
func funct7(word uint32) uint32 { return (word >> 25) & 0x7F }

// signExtend sign-extends the low bits of value.
func signExtend(value uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}

// immI returns bits [31:20] sign-extended from bit 11.
func immI(word uint32) int32 {
	return signExtend(word>>20, 12)
}

// immS assembles bits [31:25] and [11:7], sign-extended from bit 11.
func immS(word uint32) int32 {
	return signExtend(((word>>25)&0x7F)<<5|(word>>7)&0x1F, 12)
}

// immB assembles the 13-bit branch offset.
func immB(word uint32) int32 {
	v := ((word>>8)&0xF)<<1 |
		((word>>25)&0x3F)<<5 |
		((word>>7)&0x1)<<11 |
		((word>>31)&0x1)<<12
	return signExtend(v, 13)
}

// immJ assembles the 21-bit jump offset.
func immJ(word uint32) int32 {
	v := ((word>>21)&0x3FF)<<1 |
		((word>>20)&0x1)<<11 |
		((word>>12)&0xFF)<<12 |
		((word>>31)&0x1)<<20
	return signExtend(v, 21)
}

func setI(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Rd = rd(word)
	inst.Rs1 = rs1(word)
	inst.Imm = immI(word)
}

func setU(word uint32, inst *Instruction) {
	inst.Format = FormatU
	inst.Rd = rd(word)
	inst.Imm = int32(word >> 12)
}

// decodeOp decodes register-register ALU instructions.
// Format: funct7 | rs2 | rs1 | funct3 | rd | 0110011
func decodeOp(word uint32, inst *Instruction) {
	inst.Format = FormatR
	inst.Rd = rd(word)
	inst.Rs1 = rs1(word)
	inst.Rs2 = rs2(word)

	f3 := funct3(word)
	switch funct7(word) {
	case 0x00:
		inst.Op = [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}[f3]
	case 0x20:
		switch f3 {
		case 0x0:
			inst.Op = OpSUB
		case 0x5:
			inst.Op = OpSRA
		default:
			inst.Op = OpOP
		}
	default:
		inst.Op = OpOP
	}
}

// decodeOpImm decodes register-immediate ALU instructions.
// Format: imm[11:0] | rs1 | funct3 | rd | 0010011
func decodeOpImm(word uint32, inst *Instruction) {
	setI(word, inst)

	switch funct3(word) {
	case 0x0:
		inst.Op = OpADDI
	case 0x4:
		inst.Op = OpXORI
	case 0x6:
		inst.Op = OpORI
	case 0x7:
		inst.Op = OpANDI
	default:
		inst.Op = OpOPIMM
	}
}

// decodeStore decodes store instructions. Every funct3 is reported as sw.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | 0100011
func decodeStore(word uint32, inst *Instruction) {
	inst.Op = OpSW
	inst.Format = FormatS
	inst.Rs1 = rs1(word)
	inst.Rs2 = rs2(word)
	inst.Imm = immS(word)
}

// decodeBranch decodes conditional branches. Only beq and bne are
// distinguished; every non-zero funct3 folds into bne.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | 1100011
func decodeBranch(word uint32, inst *Instruction) {
	inst.Format = FormatB
	inst.Rs1 = rs1(word)
	inst.Rs2 = rs2(word)
	inst.Imm = immB(word)

	if funct3(word) == 0 {
		inst.Op = OpBEQ
	} else {
		inst.Op = OpBNE
	}
}

// decodeJAL decodes jal.
// Format: imm[20|10:1|11|19:12] | rd | 1101111
func decodeJAL(word uint32, inst *Instruction) {
	inst.Op = OpJAL
	inst.Format = FormatJ
	inst.Rd = rd(word)
	inst.Imm = immJ(word)
}

// decodeSystem recognizes the two exact environment-call encodings.
func decodeSystem(word uint32, inst *Instruction) {
	switch word {
	case 0x00000073:
		inst.Op = OpECALL
		inst.Format = FormatSystem
	case 0x00100073:
		inst.Op = OpEBREAK
		inst.Format = FormatSystem
	}
}
