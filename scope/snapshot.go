package scope

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/classpatch/universe"
)

// ErrUnknownBinding is returned by Restore when a snapshot names something
// the class set does not contain.
var ErrUnknownBinding = errors.New("scope: snapshot names an unknown entity")

// Snapshot is the name-only form of a scope, suitable for caching and
// reporting. Label bindings are not included.
type Snapshot struct {
	Classes  map[string]string `cbor:"1,keyasint,omitempty"`
	Fields   []MemberBinding   `cbor:"2,keyasint,omitempty"`
	Methods  []MemberBinding   `cbor:"3,keyasint,omitempty"`
	Reserved []string          `cbor:"4,keyasint,omitempty"`
}

// MemberBinding records one weak field or method key.
type MemberBinding struct {
	Key      string `cbor:"1,keyasint"`
	Desc     string `cbor:"2,keyasint"` // template descriptor
	Declarer string `cbor:"3,keyasint"`
	Name     string `cbor:"4,keyasint"`
	Concrete string `cbor:"5,keyasint"` // concrete descriptor
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("scope: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot returns the bindings of s by name, in a deterministic order.
func (s *Scope) Snapshot() *Snapshot {
	flat := s.Flatten()
	snap := &Snapshot{Classes: make(map[string]string, len(flat.classes))}
	for k, cw := range flat.classes {
		snap.Classes[k] = cw.Name()
	}
	for k, list := range flat.fields {
		for _, fw := range list {
			snap.Fields = append(snap.Fields, MemberBinding{
				Key: k.name, Desc: k.desc, Declarer: fw.Declarer().Name(), Name: fw.Name(), Concrete: fw.Desc(),
			})
		}
	}
	for k, list := range flat.methods {
		for _, mw := range list {
			snap.Methods = append(snap.Methods, MemberBinding{
				Key: k.name, Desc: k.desc, Declarer: mw.Declarer().Name(), Name: mw.Name(), Concrete: mw.Desc(),
			})
		}
	}
	for k := range flat.reserved {
		snap.Reserved = append(snap.Reserved, k)
	}
	sortBindings(snap.Fields)
	sortBindings(snap.Methods)
	sort.Strings(snap.Reserved)
	return snap
}

func sortBindings(bs []MemberBinding) {
	sort.Slice(bs, func(i, j int) bool {
		a, b := bs[i], bs[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Desc != b.Desc {
			return a.Desc < b.Desc
		}
		if a.Declarer != b.Declarer {
			return a.Declarer < b.Declarer
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Concrete < b.Concrete
	})
}

// Restore rebuilds a scope from a snapshot against cs.
func Restore(cs *universe.ClassSet, snap *Snapshot) (*Scope, error) {
	s := New()
	for k, name := range snap.Classes {
		cw := cs.ClassWrapper(name)
		if cw == nil {
			return nil, fmt.Errorf("%w: class %s", ErrUnknownBinding, name)
		}
		s.setClass(k, cw)
	}
	for _, b := range snap.Fields {
		cw := cs.ClassWrapper(b.Declarer)
		if cw == nil {
			return nil, fmt.Errorf("%w: class %s", ErrUnknownBinding, b.Declarer)
		}
		fw := cw.Field(b.Name, b.Concrete)
		if fw == nil {
			return nil, fmt.Errorf("%w: field %s.%s:%s", ErrUnknownBinding, b.Declarer, b.Name, b.Concrete)
		}
		if err := s.PutField(cw, b.Key, b.Desc, fw); err != nil {
			return nil, err
		}
	}
	for _, b := range snap.Methods {
		cw := cs.ClassWrapper(b.Declarer)
		if cw == nil {
			return nil, fmt.Errorf("%w: class %s", ErrUnknownBinding, b.Declarer)
		}
		mw := cw.Method(b.Name, b.Concrete)
		if mw == nil {
			return nil, fmt.Errorf("%w: method %s.%s%s", ErrUnknownBinding, b.Declarer, b.Name, b.Concrete)
		}
		if err := s.PutMethod(cw, b.Key, b.Desc, mw); err != nil {
			return nil, err
		}
	}
	for _, k := range snap.Reserved {
		s.Reserve(k)
	}
	return s, nil
}

// MarshalSnapshot serializes a snapshot to canonical CBOR.
func MarshalSnapshot(snap *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(snap)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("scope: unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
