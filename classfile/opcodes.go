package classfile

import "fmt"

// Opcode is a JVM instruction opcode.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x14)
	// ========================================================================

	OpNop        Opcode = 0x00
	OpAconstNull Opcode = 0x01
	OpIconstM1   Opcode = 0x02
	OpIconst0    Opcode = 0x03
	OpIconst1    Opcode = 0x04
	OpIconst2    Opcode = 0x05
	OpIconst3    Opcode = 0x06
	OpIconst4    Opcode = 0x07
	OpIconst5    Opcode = 0x08
	OpLconst0    Opcode = 0x09
	OpLconst1    Opcode = 0x0A
	OpFconst0    Opcode = 0x0B
	OpFconst1    Opcode = 0x0C
	OpFconst2    Opcode = 0x0D
	OpDconst0    Opcode = 0x0E
	OpDconst1    Opcode = 0x0F
	OpBipush     Opcode = 0x10 // IntInsn: signed 8-bit operand
	OpSipush     Opcode = 0x11 // IntInsn: signed 16-bit operand
	OpLdc        Opcode = 0x12 // LdcInsn

	// ========================================================================
	// Locals and arrays (0x15-0x56)
	// ========================================================================

	OpIload   Opcode = 0x15
	OpLload   Opcode = 0x16
	OpFload   Opcode = 0x17
	OpDload   Opcode = 0x18
	OpAload   Opcode = 0x19
	OpIaload  Opcode = 0x2E
	OpLaload  Opcode = 0x2F
	OpFaload  Opcode = 0x30
	OpDaload  Opcode = 0x31
	OpAaload  Opcode = 0x32
	OpBaload  Opcode = 0x33
	OpCaload  Opcode = 0x34
	OpSaload  Opcode = 0x35
	OpIstore  Opcode = 0x36
	OpLstore  Opcode = 0x37
	OpFstore  Opcode = 0x38
	OpDstore  Opcode = 0x39
	OpAstore  Opcode = 0x3A
	OpIastore Opcode = 0x4F
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56

	// ========================================================================
	// Stack manipulation (0x57-0x5F)
	// ========================================================================

	OpPop   Opcode = 0x57
	OpPop2  Opcode = 0x58
	OpDup   Opcode = 0x59
	OpDupX1 Opcode = 0x5A
	OpDupX2 Opcode = 0x5B
	OpDup2  Opcode = 0x5C
	OpSwap  Opcode = 0x5F

	// ========================================================================
	// Arithmetic and conversion (0x60-0x98)
	// ========================================================================

	OpIadd  Opcode = 0x60
	OpLadd  Opcode = 0x61
	OpFadd  Opcode = 0x62
	OpDadd  Opcode = 0x63
	OpIsub  Opcode = 0x64
	OpLsub  Opcode = 0x65
	OpFsub  Opcode = 0x66
	OpDsub  Opcode = 0x67
	OpImul  Opcode = 0x68
	OpLmul  Opcode = 0x69
	OpFmul  Opcode = 0x6A
	OpDmul  Opcode = 0x6B
	OpIdiv  Opcode = 0x6C
	OpLdiv  Opcode = 0x6D
	OpFdiv  Opcode = 0x6E
	OpDdiv  Opcode = 0x6F
	OpIrem  Opcode = 0x70
	OpLrem  Opcode = 0x71
	OpFrem  Opcode = 0x72
	OpDrem  Opcode = 0x73
	OpIneg  Opcode = 0x74
	OpLneg  Opcode = 0x75
	OpFneg  Opcode = 0x76
	OpDneg  Opcode = 0x77
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7A
	OpLshr  Opcode = 0x7B
	OpIushr Opcode = 0x7C
	OpLushr Opcode = 0x7D
	OpIand  Opcode = 0x7E
	OpLand  Opcode = 0x7F
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84 // IincInsn
	OpI2l   Opcode = 0x85
	OpI2f   Opcode = 0x86
	OpI2d   Opcode = 0x87
	OpL2i   Opcode = 0x88
	OpL2f   Opcode = 0x89
	OpL2d   Opcode = 0x8A
	OpF2i   Opcode = 0x8B
	OpF2l   Opcode = 0x8C
	OpF2d   Opcode = 0x8D
	OpD2i   Opcode = 0x8E
	OpD2l   Opcode = 0x8F
	OpD2f   Opcode = 0x90
	OpI2b   Opcode = 0x91
	OpI2c   Opcode = 0x92
	OpI2s   Opcode = 0x93
	OpLcmp  Opcode = 0x94
	OpFcmpl Opcode = 0x95
	OpFcmpg Opcode = 0x96
	OpDcmpl Opcode = 0x97
	OpDcmpg Opcode = 0x98

	// ========================================================================
	// Control flow (0x99-0xB1)
	// ========================================================================

	OpIfeq     Opcode = 0x99
	OpIfne     Opcode = 0x9A
	OpIflt     Opcode = 0x9B
	OpIfge     Opcode = 0x9C
	OpIfgt     Opcode = 0x9D
	OpIfle     Opcode = 0x9E
	OpIfIcmpeq Opcode = 0x9F
	OpIfIcmpne Opcode = 0xA0
	OpIfIcmplt Opcode = 0xA1
	OpIfIcmpge Opcode = 0xA2
	OpIfIcmpgt Opcode = 0xA3
	OpIfIcmple Opcode = 0xA4
	OpIfAcmpeq Opcode = 0xA5
	OpIfAcmpne Opcode = 0xA6
	OpGoto     Opcode = 0xA7
	OpIreturn  Opcode = 0xAC
	OpLreturn  Opcode = 0xAD
	OpFreturn  Opcode = 0xAE
	OpDreturn  Opcode = 0xAF
	OpAreturn  Opcode = 0xB0
	OpReturn   Opcode = 0xB1

	// ========================================================================
	// Members and objects (0xB2-0xC7)
	// ========================================================================

	OpGetstatic       Opcode = 0xB2
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9
	OpNew             Opcode = 0xBB
	OpNewarray        Opcode = 0xBC // IntInsn: primitive array type code
	OpAnewarray       Opcode = 0xBD
	OpArraylength     Opcode = 0xBE
	OpAthrow          Opcode = 0xBF
	OpCheckcast       Opcode = 0xC0
	OpInstanceof      Opcode = 0xC1
	OpMonitorenter    Opcode = 0xC2
	OpMonitorexit     Opcode = 0xC3
	OpIfnull          Opcode = 0xC6
	OpIfnonnull       Opcode = 0xC7

	// OpLabel is a pseudo opcode carried by LabelNode; it never appears in
	// real bytecode.
	OpLabel Opcode = 0xFF
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name string   // mnemonic as printed by javap
	Kind InsnKind // instruction node variant carrying the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:        {"nop", KindSimple},
	OpAconstNull: {"aconst_null", KindSimple},
	OpIconstM1:   {"iconst_m1", KindSimple},
	OpIconst0:    {"iconst_0", KindSimple},
	OpIconst1:    {"iconst_1", KindSimple},
	OpIconst2:    {"iconst_2", KindSimple},
	OpIconst3:    {"iconst_3", KindSimple},
	OpIconst4:    {"iconst_4", KindSimple},
	OpIconst5:    {"iconst_5", KindSimple},
	OpLconst0:    {"lconst_0", KindSimple},
	OpLconst1:    {"lconst_1", KindSimple},
	OpFconst0:    {"fconst_0", KindSimple},
	OpFconst1:    {"fconst_1", KindSimple},
	OpFconst2:    {"fconst_2", KindSimple},
	OpDconst0:    {"dconst_0", KindSimple},
	OpDconst1:    {"dconst_1", KindSimple},
	OpBipush:     {"bipush", KindInt},
	OpSipush:     {"sipush", KindInt},
	OpLdc:        {"ldc", KindLdc},

	OpIload:   {"iload", KindVar},
	OpLload:   {"lload", KindVar},
	OpFload:   {"fload", KindVar},
	OpDload:   {"dload", KindVar},
	OpAload:   {"aload", KindVar},
	OpIaload:  {"iaload", KindSimple},
	OpLaload:  {"laload", KindSimple},
	OpFaload:  {"faload", KindSimple},
	OpDaload:  {"daload", KindSimple},
	OpAaload:  {"aaload", KindSimple},
	OpBaload:  {"baload", KindSimple},
	OpCaload:  {"caload", KindSimple},
	OpSaload:  {"saload", KindSimple},
	OpIstore:  {"istore", KindVar},
	OpLstore:  {"lstore", KindVar},
	OpFstore:  {"fstore", KindVar},
	OpDstore:  {"dstore", KindVar},
	OpAstore:  {"astore", KindVar},
	OpIastore: {"iastore", KindSimple},
	OpLastore: {"lastore", KindSimple},
	OpFastore: {"fastore", KindSimple},
	OpDastore: {"dastore", KindSimple},
	OpAastore: {"aastore", KindSimple},
	OpBastore: {"bastore", KindSimple},
	OpCastore: {"castore", KindSimple},
	OpSastore: {"sastore", KindSimple},

	OpPop:   {"pop", KindSimple},
	OpPop2:  {"pop2", KindSimple},
	OpDup:   {"dup", KindSimple},
	OpDupX1: {"dup_x1", KindSimple},
	OpDupX2: {"dup_x2", KindSimple},
	OpDup2:  {"dup2", KindSimple},
	OpSwap:  {"swap", KindSimple},

	OpIadd:  {"iadd", KindSimple},
	OpLadd:  {"ladd", KindSimple},
	OpFadd:  {"fadd", KindSimple},
	OpDadd:  {"dadd", KindSimple},
	OpIsub:  {"isub", KindSimple},
	OpLsub:  {"lsub", KindSimple},
	OpFsub:  {"fsub", KindSimple},
	OpDsub:  {"dsub", KindSimple},
	OpImul:  {"imul", KindSimple},
	OpLmul:  {"lmul", KindSimple},
	OpFmul:  {"fmul", KindSimple},
	OpDmul:  {"dmul", KindSimple},
	OpIdiv:  {"idiv", KindSimple},
	OpLdiv:  {"ldiv", KindSimple},
	OpFdiv:  {"fdiv", KindSimple},
	OpDdiv:  {"ddiv", KindSimple},
	OpIrem:  {"irem", KindSimple},
	OpLrem:  {"lrem", KindSimple},
	OpFrem:  {"frem", KindSimple},
	OpDrem:  {"drem", KindSimple},
	OpIneg:  {"ineg", KindSimple},
	OpLneg:  {"lneg", KindSimple},
	OpFneg:  {"fneg", KindSimple},
	OpDneg:  {"dneg", KindSimple},
	OpIshl:  {"ishl", KindSimple},
	OpLshl:  {"lshl", KindSimple},
	OpIshr:  {"ishr", KindSimple},
	OpLshr:  {"lshr", KindSimple},
	OpIushr: {"iushr", KindSimple},
	OpLushr: {"lushr", KindSimple},
	OpIand:  {"iand", KindSimple},
	OpLand:  {"land", KindSimple},
	OpIor:   {"ior", KindSimple},
	OpLor:   {"lor", KindSimple},
	OpIxor:  {"ixor", KindSimple},
	OpLxor:  {"lxor", KindSimple},
	OpIinc:  {"iinc", KindIinc},
	OpI2l:   {"i2l", KindSimple},
	OpI2f:   {"i2f", KindSimple},
	OpI2d:   {"i2d", KindSimple},
	OpL2i:   {"l2i", KindSimple},
	OpL2f:   {"l2f", KindSimple},
	OpL2d:   {"l2d", KindSimple},
	OpF2i:   {"f2i", KindSimple},
	OpF2l:   {"f2l", KindSimple},
	OpF2d:   {"f2d", KindSimple},
	OpD2i:   {"d2i", KindSimple},
	OpD2l:   {"d2l", KindSimple},
	OpD2f:   {"d2f", KindSimple},
	OpI2b:   {"i2b", KindSimple},
	OpI2c:   {"i2c", KindSimple},
	OpI2s:   {"i2s", KindSimple},
	OpLcmp:  {"lcmp", KindSimple},
	OpFcmpl: {"fcmpl", KindSimple},
	OpFcmpg: {"fcmpg", KindSimple},
	OpDcmpl: {"dcmpl", KindSimple},
	OpDcmpg: {"dcmpg", KindSimple},

	OpIfeq:     {"ifeq", KindJump},
	OpIfne:     {"ifne", KindJump},
	OpIflt:     {"iflt", KindJump},
	OpIfge:     {"ifge", KindJump},
	OpIfgt:     {"ifgt", KindJump},
	OpIfle:     {"ifle", KindJump},
	OpIfIcmpeq: {"if_icmpeq", KindJump},
	OpIfIcmpne: {"if_icmpne", KindJump},
	OpIfIcmplt: {"if_icmplt", KindJump},
	OpIfIcmpge: {"if_icmpge", KindJump},
	OpIfIcmpgt: {"if_icmpgt", KindJump},
	OpIfIcmple: {"if_icmple", KindJump},
	OpIfAcmpeq: {"if_acmpeq", KindJump},
	OpIfAcmpne: {"if_acmpne", KindJump},
	OpGoto:     {"goto", KindJump},
	OpIreturn:  {"ireturn", KindSimple},
	OpLreturn:  {"lreturn", KindSimple},
	OpFreturn:  {"freturn", KindSimple},
	OpDreturn:  {"dreturn", KindSimple},
	OpAreturn:  {"areturn", KindSimple},
	OpReturn:   {"return", KindSimple},

	OpGetstatic:       {"getstatic", KindField},
	OpPutstatic:       {"putstatic", KindField},
	OpGetfield:        {"getfield", KindField},
	OpPutfield:        {"putfield", KindField},
	OpInvokevirtual:   {"invokevirtual", KindMethod},
	OpInvokespecial:   {"invokespecial", KindMethod},
	OpInvokestatic:    {"invokestatic", KindMethod},
	OpInvokeinterface: {"invokeinterface", KindMethod},
	OpNew:             {"new", KindType},
	OpNewarray:        {"newarray", KindInt},
	OpAnewarray:       {"anewarray", KindType},
	OpArraylength:     {"arraylength", KindSimple},
	OpAthrow:          {"athrow", KindSimple},
	OpCheckcast:       {"checkcast", KindType},
	OpInstanceof:      {"instanceof", KindType},
	OpMonitorenter:    {"monitorenter", KindSimple},
	OpMonitorexit:     {"monitorexit", KindSimple},
	OpIfnull:          {"ifnull", KindJump},
	OpIfnonnull:       {"ifnonnull", KindJump},

	OpLabel: {"label", KindLabel},
}

// GetOpcodeInfo returns metadata for an opcode.
// The second result is false if the opcode is not part of the model.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// Kind returns the instruction variant that carries this opcode.
func (op Opcode) Kind() InsnKind {
	return opcodeInfoTable[op].Kind
}

// IsJump returns true if this opcode transfers control to a label.
func (op Opcode) IsJump() bool {
	return op.Kind() == KindJump
}

// IsReturn returns true if this opcode returns from the method.
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}

var opcodesByName map[string]Opcode

func init() {
	opcodesByName = make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		opcodesByName[info.Name] = op
	}
}

// LookupOpcode returns the opcode with the given javap mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}
