package godwarf

// Standard line program opcodes, DWARFv4 6.2.5.2.
const (
	LNSCopy             = 0x01
	LNSAdvancePc        = 0x02
	LNSAdvanceLine      = 0x03
	LNSSetFile          = 0x04
	LNSSetColumn        = 0x05
	LNSNegateStmt       = 0x06
	LNSSetBasicBlock    = 0x07
	LNSConstAddPc       = 0x08
	LNSFixedAdvancePc   = 0x09
	LNSSetPrologueEnd   = 0x0a
	LNSSetEpilogueBegin = 0x0b
	LNSSetIsa           = 0x0c
)

// Extended line program opcodes, DWARFv4 6.2.5.3.
const (
	LNEEndSequence      = 0x01
	LNESetAddress       = 0x02
	LNEDefineFile       = 0x03
	LNESetDiscriminator = 0x04
	LNELoUser           = 0x80
	LNEHiUser           = 0xff
)

// StandardOpcodeLengths holds the number of LEB128 operands of every
// standard opcode, indexed by opcode-1.
var StandardOpcodeLengths = [...]uint8{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}

// Unit types of a DWARF 5 unit header, DWARFv5 7.5.1.
const (
	UTCompile      = 0x01
	UTType         = 0x02
	UTPartial      = 0x03
	UTSkeleton     = 0x04
	UTSplitCompile = 0x05
	UTSplitType    = 0x06
)
