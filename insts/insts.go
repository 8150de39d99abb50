// Package insts provides RV32I instruction definitions, decoding and
// control-signal classification.
//
// This package turns raw 32-bit RISC-V machine words into structured
// instruction descriptors. It recognizes:
//   - Register-register ALU ops: ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND
//   - Register-immediate ALU ops: ADDI, XORI, ORI, ANDI (others are reported
//     as a generic "opimm")
//   - Memory: LW, SW
//   - Control flow: BEQ, BNE, JAL, JALR
//   - Upper immediates: LUI, AUIPC
//   - System: ECALL, EBREAK
//
// Decoding is total: every 32-bit value yields an Instruction, unknown
// encodings map to OpUnknown. The zero word, the canonical
// "addi x0, x0, 0" and any other OP-IMM with rd, rs1 and imm zero decode
// to a pipeline bubble, the same words Classify reports as idle.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x003100B3) // add x1, x2, x3
//	fmt.Printf("%s rd=x%d rs1=x%d rs2=x%d\n", inst.Mnemonic(), inst.Rd, inst.Rs1, inst.Rs2)
//
//	ctrl := insts.Classify(0x003100B3)
//	fmt.Println(ctrl.UsesExecute, ctrl.WritesRegister)
package insts
