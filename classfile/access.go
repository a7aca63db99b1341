package classfile

import "strings"

// Access is a set of JVM access flags.
type Access uint16

const (
	AccPublic    Access = 0x0001
	AccPrivate   Access = 0x0002
	AccProtected Access = 0x0004
	AccStatic    Access = 0x0008
	AccFinal     Access = 0x0010
	AccSuper     Access = 0x0020
	AccInterface Access = 0x0200
	AccAbstract  Access = 0x0400
	AccEnum      Access = 0x4000
)

var accessNames = []struct {
	flag Access
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSuper, "super"},
	{AccInterface, "interface"},
	{AccAbstract, "abstract"},
	{AccEnum, "enum"},
}

// Has reports whether every bit of flag is set.
func (a Access) Has(flag Access) bool {
	return a&flag == flag
}

// String returns the flags as space separated keywords.
func (a Access) String() string {
	var parts []string
	for _, n := range accessNames {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}
