package insts

import (
	"fmt"
	"strings"
)

// OperandKind identifies the role of an operand.
type OperandKind uint8

// Operand kinds.
const (
	OperandReg    OperandKind = iota // Register index
	OperandImm                       // Immediate value
	OperandTarget                    // PC-relative offset, resolved by the caller
)

// Operand describes one operand of a decoded instruction.
type Operand struct {
	Kind OperandKind
	Reg  uint8 // Valid for OperandReg
	Imm  int32 // Valid for OperandImm and OperandTarget
}

// RegOperand builds a register operand.
func RegOperand(reg uint8) Operand {
	return Operand{Kind: OperandReg, Reg: reg}
}

// ImmOperand builds an immediate operand.
func ImmOperand(imm int32) Operand {
	return Operand{Kind: OperandImm, Imm: imm}
}

// TargetOperand builds a PC-relative target operand.
func TargetOperand(offset int32) Operand {
	return Operand{Kind: OperandTarget, Imm: offset}
}

// String formats the operand in assembler syntax.
func (o Operand) String() string {
	switch o.Kind {
	case OperandReg:
		return fmt.Sprintf("x%d", o.Reg)
	case OperandTarget:
		return fmt.Sprintf("%+d", o.Imm)
	default:
		return fmt.Sprintf("%d", o.Imm)
	}
}

// Operands returns the operand list in assembler order:
//
//	R-type        rd, rs1, rs2
//	I-type, load  rd, rs1, imm
//	store         rs2, rs1, imm
//	branch        rs1, rs2, target
//	lui, auipc    rd, imm
//	jal           rd, target
//
// Bubbles, system and unknown instructions have no operands.
func (i *Instruction) Operands() []Operand {
	switch i.Format {
	case FormatR:
		return []Operand{RegOperand(i.Rd), RegOperand(i.Rs1), RegOperand(i.Rs2)}
	case FormatI:
		return []Operand{RegOperand(i.Rd), RegOperand(i.Rs1), ImmOperand(i.Imm)}
	case FormatS:
		return []Operand{RegOperand(i.Rs2), RegOperand(i.Rs1), ImmOperand(i.Imm)}
	case FormatB:
		return []Operand{RegOperand(i.Rs1), RegOperand(i.Rs2), TargetOperand(i.Imm)}
	case FormatU:
		return []Operand{RegOperand(i.Rd), ImmOperand(i.Imm)}
	case FormatJ:
		return []Operand{RegOperand(i.Rd), TargetOperand(i.Imm)}
	default:
		return nil
	}
}

// String returns the disassembly text, e.g. "addi x5, x0, -1",
// "lw x1, 0(x2)" or "lui x1, 0x10000".
func (i *Instruction) String() string {
	m := i.Mnemonic()

	switch i.Op {
	case OpLW, OpJALR:
		return fmt.Sprintf("%s x%d, %d(x%d)", m, i.Rd, i.Imm, i.Rs1)
	case OpSW:
		return fmt.Sprintf("%s x%d, %d(x%d)", m, i.Rs2, i.Imm, i.Rs1)
	case OpLUI, OpAUIPC:
		return fmt.Sprintf("%s x%d, %#x", m, i.Rd, uint32(i.Imm))
	}

	ops := i.Operands()
	if len(ops) == 0 {
		return m
	}

	parts := make([]string, len(ops))
	for k, op := range ops {
		parts[k] = op.String()
	}
	return m + " " + strings.Join(parts, ", ")
}
