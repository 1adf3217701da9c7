// Package compressed expands 16-bit RVC instructions into their canonical
// 32-bit RV32I/Zicsr equivalents, so the execution core only ever has to
// decode one instruction width. The bit-shuffle tables below follow
// riscv-spec-v2.2 table 12.5, the same immediate reshuffling a from-scratch
// Go decoder for this extension uses.
package compressed

import "fmt"

// reg8 maps a 3-bit compressed register field (x8-x15) onto the full 5-bit
// register number the quadrant-0/1 "CL/CS/CB/CIW" formats restrict
// themselves to.
func reg8(f uint16) uint32 { return uint32(f) + 8 }

func signExtend(v uint32, bit uint) int32 {
	shift := 31 - bit
	return int32(v<<shift) >> shift
}

// quadrant + funct3 select the instruction the same way the reference
// decoder's "in>>11&0x1c | in&0x3" key does; Expand reproduces that key by
// switching on (funct3, quadrant) explicitly, which reads better in Go than
// a magic packed constant.

// Expand32 returns the canonical 32-bit encoding of the 16-bit compressed
// instruction in, or an error if in is a reserved/illegal encoding.
// Register-only forms (C.NOP, C.EBREAK, ...) and immediate-carrying forms
// are reassembled directly into RV32I instruction words rather than into
// an intermediate struct, so the result can be fed straight to the normal
// 32-bit decoder.
func Expand32(in uint16) (uint32, error) {
	if in == 0 {
		return 0, fmt.Errorf("illegal compressed instruction 0x0000")
	}
	quadrant := in & 0x3
	funct3 := (in >> 13) & 0x7

	switch quadrant {
	case 0:
		return expandQuadrant0(in, funct3)
	case 1:
		return expandQuadrant1(in, funct3)
	case 2:
		return expandQuadrant2(in, funct3)
	}
	return 0, fmt.Errorf("reserved compressed instruction %#04x", in)
}

func rType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iType(imm int32, rs1, funct3, rd, opcode uint32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func sType(imm int32, rs2, rs1, funct3, opcode uint32) uint32 {
	u := uint32(imm)
	return (u&0xFE0)<<20 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

func bType(imm int32, rs2, rs1, funct3, opcode uint32) uint32 {
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3F)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u>>1&0xF)<<8 | (u>>11&1)<<7 | opcode
}

func uType(imm int32, rd, opcode uint32) uint32 {
	return uint32(imm)&0xFFFFF000 | rd<<7 | opcode
}

func jType(imm int32, rd, opcode uint32) uint32 {
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&1)<<20 | (u>>12&0xFF)<<12 | rd<<7 | opcode
}

const (
	opOpImm  = 0b0010011
	opLoad   = 0b0000011
	opStore  = 0b0100011
	opOp     = 0b0110011
	opLUI    = 0b0110111
	opBranch = 0b1100011
	opJAL    = 0b1101111
	opJALR   = 0b1100111
	opSystem = 0b1110011
)

func expandQuadrant0(in uint16, funct3 uint16) (uint32, error) {
	rs1 := reg8((in >> 7) & 0x7)
	rd := reg8((in >> 2) & 0x7)

	switch funct3 {
	case 0x0: // C.ADDI4SPN
		imm := (in>>7)&0x30 | (in>>1)&0x3C0 | (in>>4)&0x4 | (in>>2)&0x8
		if imm == 0 {
			return 0, fmt.Errorf("reserved C.ADDI4SPN (nzuimm=0)")
		}
		return iType(int32(imm), 2, 0, rd, opOpImm), nil
	case 0x2: // C.LW
		imm := (in<<1)&0x40 | (in>>7)&0x38 | (in>>4)&0x4
		return iType(int32(imm), rs1, 0x2, rd, opLoad), nil
	case 0x6: // C.SW
		imm := (in<<1)&0x40 | (in>>7)&0x38 | (in>>4)&0x4
		rs2 := rd
		return sType(int32(imm), rs2, rs1, 0x2, opStore), nil
	}
	return 0, fmt.Errorf("reserved compressed instruction %#04x", in)
}

func expandQuadrant1(in uint16, funct3 uint16) (uint32, error) {
	rd := uint32((in >> 7) & 0x1F)

	switch funct3 {
	case 0x0: // C.NOP / C.ADDI
		imm := signExtend(uint32((in>>7)&0x20|(in>>2)&0x1F), 5)
		return iType(imm, rd, 0, rd, opOpImm), nil
	case 0x1: // C.JAL (RV32): x1 <- pc+2, pc <- pc+imm
		imm := signExtend(decodeCJImm(in), 11)
		return jType(imm, 1, opJAL), nil
	case 0x2: // C.LI
		imm := signExtend(uint32((in>>7)&0x20|(in>>2)&0x1F), 5)
		return iType(imm, 0, 0, rd, opOpImm), nil
	case 0x3:
		if rd == 2 { // C.ADDI16SP
			imm := uint32((in>>3)&0x200 | (in>>2)&0x10 | (in<<1)&0x40 | (in<<4)&0x180 | (in<<3)&0x20)
			se := signExtend(imm, 9)
			if se == 0 {
				return 0, fmt.Errorf("reserved C.ADDI16SP (nzimm=0)")
			}
			return iType(se, 2, 0, 2, opOpImm), nil
		}
		// C.LUI
		imm := uint32((in>>7)&0x20|(in>>2)&0x1F) << 12
		se := signExtend(imm, 17)
		if se == 0 {
			return 0, fmt.Errorf("reserved C.LUI (nzimm=0)")
		}
		if rd == 0 {
			return 0, fmt.Errorf("reserved C.LUI (rd=0)")
		}
		return uType(se, rd, opLUI), nil
	case 0x4:
		rs1 := reg8((in >> 7) & 0x7)
		switch (in >> 10) & 0x3 {
		case 0x0: // C.SRLI
			shamt := uint32((in>>7)&0x20 | (in>>2)&0x1F)
			return iType(int32(shamt), rs1, 0x5, rs1, opOpImm), nil
		case 0x1: // C.SRAI
			shamt := uint32((in>>7)&0x20 | (in>>2)&0x1F)
			return iType(int32(0x400|shamt), rs1, 0x5, rs1, opOpImm), nil
		case 0x2: // C.ANDI
			imm := signExtend(uint32((in>>7)&0x20|(in>>2)&0x1F), 5)
			return iType(imm, rs1, 0x7, rs1, opOpImm), nil
		case 0x3:
			rs2 := reg8((in >> 2) & 0x7)
			switch ((in >> 10) & 0x4) | ((in >> 5) & 0x3) {
			case 0x0:
				return rType(0x20, rs2, rs1, 0x0, rs1, opOp), nil // C.SUB
			case 0x1:
				return rType(0x00, rs2, rs1, 0x4, rs1, opOp), nil // C.XOR
			case 0x2:
				return rType(0x00, rs2, rs1, 0x6, rs1, opOp), nil // C.OR
			case 0x3:
				return rType(0x00, rs2, rs1, 0x7, rs1, opOp), nil // C.AND
			}
		}
	case 0x5: // C.J
		imm := signExtend(decodeCJImm(in), 11)
		return jType(imm, 0, opJAL), nil
	case 0x6: // C.BEQZ
		rs1 := reg8((in >> 7) & 0x7)
		imm := signExtend(decodeCBImm(in), 8)
		return bType(imm, 0, rs1, 0x0, opBranch), nil
	case 0x7: // C.BNEZ
		rs1 := reg8((in >> 7) & 0x7)
		imm := signExtend(decodeCBImm(in), 8)
		return bType(imm, 0, rs1, 0x1, opBranch), nil
	}
	return 0, fmt.Errorf("reserved compressed instruction %#04x", in)
}

func expandQuadrant2(in uint16, funct3 uint16) (uint32, error) {
	rd := uint32((in >> 7) & 0x1F)
	rs2 := uint32((in >> 2) & 0x1F)

	switch funct3 {
	case 0x0: // C.SLLI
		shamt := uint32((in>>7)&0x20 | (in>>2)&0x1F)
		return iType(int32(shamt), rd, 0x1, rd, opOpImm), nil
	case 0x2: // C.LWSP
		if rd == 0 {
			return 0, fmt.Errorf("reserved C.LWSP (rd=0)")
		}
		imm := uint32((in<<4)&0xC0 | (in>>7)&0x20 | (in>>2)&0x1C)
		return iType(int32(imm), 2, 0x2, rd, opLoad), nil
	case 0x4:
		b12 := in & 0x1000
		switch {
		case b12 == 0 && rs2 == 0: // C.JR
			if rd == 0 {
				return 0, fmt.Errorf("reserved C.JR (rs1=0)")
			}
			return iType(0, rd, 0, 0, opJALR), nil
		case b12 == 0: // C.MV
			return rType(0, rs2, 0, 0, rd, opOp), nil
		case b12 != 0 && rd == 0 && rs2 == 0: // C.EBREAK
			return iType(1, 0, 0, 0, opSystem), nil
		case b12 != 0 && rs2 == 0: // C.JALR
			return iType(0, rd, 0, 1, opJALR), nil
		default: // C.ADD
			return rType(0, rs2, rd, 0, rd, opOp), nil
		}
	case 0x6: // C.SWSP
		imm := uint32((in>>1)&0xC0 | (in>>7)&0x3C)
		return sType(int32(imm), rs2, 2, 0x2, opStore), nil
	}
	return 0, fmt.Errorf("reserved compressed instruction %#04x", in)
}

func decodeCJImm(in uint16) uint32 {
	u := uint32(in)
	return (u>>1&0x800 | u>>7&0x10 | u>>1&0x300 | u<<2&0x400 |
		u>>1&0x40 | u<<1&0x80 | u>>2&0xE | u<<3&0x20)
}

func decodeCBImm(in uint16) uint32 {
	u := uint32(in)
	return (u>>4&0x100 | u>>7&0x18 | u<<1&0xC0 | u>>2&0x6 | u<<3&0x20)
}
