package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// Bit is a control flag that arrives as 0/1 or as a JSON boolean.
type Bit bool

// UnmarshalJSON accepts true, false, null and integers (non-zero is true).
func (b *Bit) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch s {
	case "true":
		*b = true
		return nil
	case "false", "null":
		*b = false
		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid flag %s", s)
	}
	*b = v != 0
	return nil
}

// MarshalJSON encodes the flag as 0 or 1.
func (b Bit) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// DecodePacket carries the ID stage register indices.
type DecodePacket struct {
	Rs1 uint8 `json:"rs1"`
	Rs2 uint8 `json:"rs2"`
	Rd  uint8 `json:"rd"`
}

// ExecutePacket carries the EX stage outputs. PCSrc is the branch-taken
// select and PCJB the jump/branch target.
type ExecutePacket struct {
	OpA       uint32 `json:"op_a"`
	OpB       uint32 `json:"op_b"`
	ALUResult uint32 `json:"alu_result"`
	PCSrc     Bit    `json:"pc_src"`
	PCJB      uint32 `json:"pc_jb"`
}

// MemoryPacket carries the MEM stage write port.
type MemoryPacket struct {
	WE    Bit    `json:"we"`
	Addr  uint32 `json:"addr"`
	WData uint32 `json:"wdata"`
}

// WritebackPacket carries the WB stage register write port.
type WritebackPacket struct {
	WE    Bit    `json:"we"`
	Rd    uint8  `json:"rd"`
	WData uint32 `json:"wdata"`
}

// HazardPacket carries the hazard unit outputs.
type HazardPacket struct {
	IFStall Bit `json:"if_stall"`
	IDStall Bit `json:"id_stall"`
	Flush   Bit `json:"flush"`
}

// ForwardPacket carries the forwarding mux selects:
// 0 register file, 1 EX/MEM, 2 MEM/WB.
type ForwardPacket struct {
	ASel uint8 `json:"a_sel"`
	BSel uint8 `json:"b_sel"`
}

// Packet is one line of the simulator's trace stream.
//
//	{"cycle":3,
//	 "pc":{"if":16,"id":12,"ex":8,"mem":4,"wb":0},
//	 "instr":{"if":19,"id":3211443,...},
//	 "id":{"rs1":2,"rs2":3,"rd":1},
//	 "ex":{"op_a":0,"op_b":0,"alu_result":0,"pc_src":0,"pc_jb":0},
//	 "mem":{"we":0,"addr":0,"wdata":0},
//	 "wb":{"we":1,"rd":5,"wdata":42},
//	 "hazard":{"if_stall":0,"id_stall":0,"flush":0},
//	 "fwd":{"a_sel":0,"b_sel":0},
//	 "registers":[0,...]}
//
// A packet with a non-empty "error" field carries no snapshot.
type Packet struct {
	Cycle     uint64            `json:"cycle"`
	PC        map[string]uint32 `json:"pc"`
	Instr     map[string]uint32 `json:"instr"`
	ID        DecodePacket      `json:"id"`
	EX        ExecutePacket     `json:"ex"`
	Mem       MemoryPacket      `json:"mem"`
	WB        WritebackPacket   `json:"wb"`
	Hazard    HazardPacket      `json:"hazard"`
	Fwd       ForwardPacket     `json:"fwd"`
	Registers []uint32          `json:"registers"`
	Error     string            `json:"error,omitempty"`
}

// Raw converts the packet into the loosely shaped snapshot input. Stage
// keys are matched case-insensitively; an unknown key or a stage with an
// instruction but no PC (or the reverse) is malformed.
func (p *Packet) Raw() (pipeline.Raw, error) {
	raw := pipeline.Raw{
		Cycle:        p.Cycle,
		RegisterFile: p.Registers,
		DecodeOperands: pipeline.DecodeOperands{
			Rs1: p.ID.Rs1,
			Rs2: p.ID.Rs2,
			Rd:  p.ID.Rd,
		},
		Execute: pipeline.ExecuteResult{
			OperandA:     p.EX.OpA,
			OperandB:     p.EX.OpB,
			ALUResult:    p.EX.ALUResult,
			BranchTaken:  bool(p.EX.PCSrc),
			BranchTarget: p.EX.PCJB,
		},
		Memory: pipeline.MemoryAccess{
			WriteEnable: bool(p.Mem.WE),
			Address:     p.Mem.Addr,
			WriteData:   p.Mem.WData,
		},
		Writeback: pipeline.WritebackResult{
			WriteEnable:  bool(p.WB.WE),
			DestRegister: p.WB.Rd,
			WriteData:    p.WB.WData,
		},
		Hazard: pipeline.HazardSignals{
			FetchStall:  bool(p.Hazard.IFStall),
			DecodeStall: bool(p.Hazard.IDStall),
			Flush:       bool(p.Hazard.Flush),
		},
		Forward: pipeline.ForwardingSignals{
			OperandASource: pipeline.ForwardSource(p.Fwd.ASel),
			OperandBSource: pipeline.ForwardSource(p.Fwd.BSel),
		},
	}

	for name, word := range p.Instr {
		st, ok := pipeline.ParseStage(name)
		if !ok {
			return raw, p.malformed("unknown stage %q", name)
		}
		pc, ok := p.PC[name]
		if !ok {
			return raw, p.malformed("stage %s has an instruction but no pc", st)
		}
		raw.Stages = append(raw.Stages, pipeline.StageSnapshot{
			Stage:           st,
			PC:              pc,
			InstructionWord: word,
		})
	}
	for name := range p.PC {
		if _, ok := p.Instr[name]; !ok {
			return raw, p.malformed("stage %q has a pc but no instruction", name)
		}
	}

	return raw, nil
}

// Snapshot converts and validates the packet.
func (p *Packet) Snapshot() (*pipeline.CycleSnapshot, error) {
	raw, err := p.Raw()
	if err != nil {
		return nil, err
	}
	return pipeline.New(raw)
}

func (p *Packet) malformed(format string, args ...any) error {
	return &pipeline.MalformedSnapshotError{Cycle: p.Cycle, Reason: fmt.Sprintf(format, args...)}
}

// FromSnapshot encodes a snapshot in wire form.
func FromSnapshot(s *pipeline.CycleSnapshot) *Packet {
	p := &Packet{
		Cycle:     s.Cycle,
		PC:        make(map[string]uint32, pipeline.NumStages),
		Instr:     make(map[string]uint32, pipeline.NumStages),
		ID:        DecodePacket{Rs1: s.DecodeOperands.Rs1, Rs2: s.DecodeOperands.Rs2, Rd: s.DecodeOperands.Rd},
		Registers: append([]uint32(nil), s.RegisterFile[:]...),
		EX: ExecutePacket{
			OpA:       s.Execute.OperandA,
			OpB:       s.Execute.OperandB,
			ALUResult: s.Execute.ALUResult,
			PCSrc:     Bit(s.Execute.BranchTaken),
			PCJB:      s.Execute.BranchTarget,
		},
		Mem: MemoryPacket{WE: Bit(s.Memory.WriteEnable), Addr: s.Memory.Address, WData: s.Memory.WriteData},
		WB:  WritebackPacket{WE: Bit(s.Writeback.WriteEnable), Rd: s.Writeback.DestRegister, WData: s.Writeback.WriteData},
		Hazard: HazardPacket{
			IFStall: Bit(s.Hazard.FetchStall),
			IDStall: Bit(s.Hazard.DecodeStall),
			Flush:   Bit(s.Hazard.Flush),
		},
		Fwd: ForwardPacket{
			ASel: uint8(s.Forward.OperandASource),
			BSel: uint8(s.Forward.OperandBSource),
		},
	}

	for _, slot := range s.Stages {
		key := strings.ToLower(slot.Stage.String())
		p.PC[key] = slot.PC
		p.Instr[key] = slot.InstructionWord
	}

	return p
}
