package patch

import (
	"strings"

	"github.com/chazu/classpatch/classfile"
)

// ---------------------------------------------------------------------------
// Instruction families
// ---------------------------------------------------------------------------

// Op is an instruction family. Families that span several opcodes (field
// access, invocation, jumps, locals, type instructions and simple
// instructions) carry the concrete opcode in Instruction.Opcode.
type Op uint8

const (
	OpField Op = iota
	OpInvoke
	OpReturn
	OpPushInt
	OpPushLong
	OpPushFloat
	OpPushDouble
	OpPushString
	OpPushClass
	OpLabel
	OpJump
	OpVar
	OpType
	OpIinc
	OpSimple
	OpAny

	numOps
)

var opNames = [...]string{
	OpField:      "field",
	OpInvoke:     "invoke",
	OpReturn:     "return",
	OpPushInt:    "push-int",
	OpPushLong:   "push-long",
	OpPushFloat:  "push-float",
	OpPushDouble: "push-double",
	OpPushString: "push-string",
	OpPushClass:  "push-class",
	OpLabel:      "label",
	OpJump:       "jump",
	OpVar:        "var",
	OpType:       "type",
	OpIinc:       "iinc",
	OpSimple:     "simple",
	OpAny:        "any",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// NumOps is the number of instruction families.
const NumOps = int(numOps)

// mnemonic is a template instruction name.
type mnemonic struct {
	op     Op
	opcode classfile.Opcode
}

var (
	mnemonics     = make(map[string]mnemonic)
	mnemonicNames = make(map[mnemonic]string)
)

func defMnemonic(name string, op Op, opcode classfile.Opcode) {
	m := mnemonic{op, opcode}
	mnemonics[name] = m
	mnemonicNames[m] = name
}

func init() {
	defMnemonic("get-field", OpField, classfile.OpGetfield)
	defMnemonic("get-static", OpField, classfile.OpGetstatic)
	defMnemonic("put-field", OpField, classfile.OpPutfield)
	defMnemonic("put-static", OpField, classfile.OpPutstatic)

	defMnemonic("invoke-virtual", OpInvoke, classfile.OpInvokevirtual)
	defMnemonic("invoke-special", OpInvoke, classfile.OpInvokespecial)
	defMnemonic("invoke-static", OpInvoke, classfile.OpInvokestatic)
	defMnemonic("invoke-interface", OpInvoke, classfile.OpInvokeinterface)

	defMnemonic("return", OpReturn, classfile.OpReturn)
	defMnemonic("push-int", OpPushInt, classfile.OpLdc)
	defMnemonic("push-long", OpPushLong, classfile.OpLdc)
	defMnemonic("push-float", OpPushFloat, classfile.OpLdc)
	defMnemonic("push-double", OpPushDouble, classfile.OpLdc)
	defMnemonic("push-string", OpPushString, classfile.OpLdc)
	defMnemonic("push-class", OpPushClass, classfile.OpLdc)
	defMnemonic("label", OpLabel, classfile.OpLabel)

	defMnemonic("goto", OpJump, classfile.OpGoto)
	defMnemonic("if-eq", OpJump, classfile.OpIfeq)
	defMnemonic("if-ne", OpJump, classfile.OpIfne)
	defMnemonic("if-lt", OpJump, classfile.OpIflt)
	defMnemonic("if-ge", OpJump, classfile.OpIfge)
	defMnemonic("if-gt", OpJump, classfile.OpIfgt)
	defMnemonic("if-le", OpJump, classfile.OpIfle)
	defMnemonic("if-icmp-eq", OpJump, classfile.OpIfIcmpeq)
	defMnemonic("if-icmp-ne", OpJump, classfile.OpIfIcmpne)
	defMnemonic("if-icmp-lt", OpJump, classfile.OpIfIcmplt)
	defMnemonic("if-icmp-ge", OpJump, classfile.OpIfIcmpge)
	defMnemonic("if-icmp-gt", OpJump, classfile.OpIfIcmpgt)
	defMnemonic("if-icmp-le", OpJump, classfile.OpIfIcmple)
	defMnemonic("if-acmp-eq", OpJump, classfile.OpIfAcmpeq)
	defMnemonic("if-acmp-ne", OpJump, classfile.OpIfAcmpne)
	defMnemonic("if-null", OpJump, classfile.OpIfnull)
	defMnemonic("if-non-null", OpJump, classfile.OpIfnonnull)

	defMnemonic("load-int", OpVar, classfile.OpIload)
	defMnemonic("load-long", OpVar, classfile.OpLload)
	defMnemonic("load-float", OpVar, classfile.OpFload)
	defMnemonic("load-double", OpVar, classfile.OpDload)
	defMnemonic("load-object", OpVar, classfile.OpAload)
	defMnemonic("store-int", OpVar, classfile.OpIstore)
	defMnemonic("store-long", OpVar, classfile.OpLstore)
	defMnemonic("store-float", OpVar, classfile.OpFstore)
	defMnemonic("store-double", OpVar, classfile.OpDstore)
	defMnemonic("store-object", OpVar, classfile.OpAstore)

	defMnemonic("new", OpType, classfile.OpNew)
	defMnemonic("check-cast", OpType, classfile.OpCheckcast)
	defMnemonic("instance-of", OpType, classfile.OpInstanceof)
	defMnemonic("new-array", OpType, classfile.OpAnewarray)

	defMnemonic("iinc", OpIinc, classfile.OpIinc)
	defMnemonic("any", OpAny, classfile.OpNop)

	// Every remaining operand-less opcode is a simple instruction named
	// after its mnemonic, e.g. "aconst-null", "iadd", "dup-x1".
	for op := 0; op < 256; op++ {
		opcode := classfile.Opcode(op)
		info, ok := classfile.GetOpcodeInfo(opcode)
		if !ok || info.Kind != classfile.KindSimple || opcode.IsReturn() || IsIntConst(opcode) {
			continue
		}
		defMnemonic(SimpleName(opcode), OpSimple, opcode)
	}
}

// SimpleName returns the template mnemonic of an operand-less opcode.
func SimpleName(op classfile.Opcode) string {
	return strings.ReplaceAll(op.String(), "_", "-")
}

// IsIntConst reports whether op is one of iconst_m1 .. iconst_5.
func IsIntConst(op classfile.Opcode) bool {
	return op >= classfile.OpIconstM1 && op <= classfile.OpIconst5
}

// LookupMnemonic returns the family and opcode of a template mnemonic.
func LookupMnemonic(name string) (Op, classfile.Opcode, bool) {
	m, ok := mnemonics[name]
	return m.op, m.opcode, ok
}

// Mnemonic returns the template name for a family and opcode.
func Mnemonic(op Op, opcode classfile.Opcode) string {
	if name, ok := mnemonicNames[mnemonic{op, opcode}]; ok {
		return name
	}
	return op.String()
}
