// Package smali is the reference codec for dexedit documents: a
// smali-flavored class model, a line-based assembler/disassembler, a
// container image codec and a Java-ish decompiler. The core consumes
// it only through the codec interface in package dex.
package smali

import (
	"strings"

	"dexedit/dex"
)

// Class is one compiled class record. Immutable after construction;
// edits assemble a fresh Class.
type Class struct {
	ClassName  string   `cbor:"name"`
	Super      string   `cbor:"super"`
	Ifaces     []string `cbor:"ifaces,omitempty"`
	ClassFlags []string `cbor:"flags,omitempty"`
	FieldList  []Field  `cbor:"fields,omitempty"`
	MethodList []Method `cbor:"methods,omitempty"`

	// raw holds the encoded record bytes for classes decoded from an
	// image, so re-encoding an untouched class is byte-stable.
	raw []byte
}

// Field is one declared field.
type Field struct {
	Name  string   `cbor:"name"`
	Type  string   `cbor:"type"`
	Flags []string `cbor:"flags,omitempty"`
}

// Method is one declared method with its instruction stream.
type Method struct {
	Name      string        `cbor:"name"`
	Signature string        `cbor:"sig"`
	Flags     []string      `cbor:"flags,omitempty"`
	Registers int           `cbor:"regs,omitempty"`
	Code      []Instruction `cbor:"code,omitempty"`
}

// Instruction is one smali instruction line.
type Instruction struct {
	Mnemonic string `cbor:"op"`
	Operands string `cbor:"args,omitempty"`
}

// Text returns the canonical single-line rendering.
func (i Instruction) Text() string {
	if i.Operands == "" {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + i.Operands
}

// kindOf classifies a mnemonic for search purposes.
func kindOf(mnemonic string) dex.OpKind {
	switch {
	case strings.HasPrefix(mnemonic, "invoke-"):
		return dex.OpInvoke
	case strings.HasPrefix(mnemonic, "iget"),
		strings.HasPrefix(mnemonic, "iput"),
		strings.HasPrefix(mnemonic, "sget"),
		strings.HasPrefix(mnemonic, "sput"):
		return dex.OpFieldAccess
	case strings.HasPrefix(mnemonic, "const"):
		return dex.OpConstLoad
	}
	return dex.OpOther
}

// Name implements dex.ClassDefinition.
func (c *Class) Name() string { return c.ClassName }

// SuperName implements dex.ClassDefinition.
func (c *Class) SuperName() string { return c.Super }

// Interfaces implements dex.ClassDefinition.
func (c *Class) Interfaces() []string { return c.Ifaces }

// AccessFlags implements dex.ClassDefinition.
func (c *Class) AccessFlags() []string { return c.ClassFlags }

// Fields implements dex.ClassDefinition.
func (c *Class) Fields() []dex.FieldSummary {
	out := make([]dex.FieldSummary, len(c.FieldList))
	for i, f := range c.FieldList {
		out[i] = dex.FieldSummary{Name: f.Name, Type: f.Type}
	}
	return out
}

// Methods implements dex.ClassDefinition.
func (c *Class) Methods() []dex.MethodSummary {
	out := make([]dex.MethodSummary, len(c.MethodList))
	for i, m := range c.MethodList {
		ins := make([]dex.Instruction, len(m.Code))
		for j, in := range m.Code {
			ins[j] = dex.Instruction{Kind: kindOf(in.Mnemonic), Text: in.Text()}
		}
		out[i] = dex.MethodSummary{Name: m.Name, Signature: m.Signature, Instructions: ins}
	}
	return out
}

// Raw implements dex.ClassDefinition.
func (c *Class) Raw() []byte { return c.raw }

// method returns the named method. Accepts a bare name or a
// name+signature form; a bare name matches the first overload.
func (c *Class) method(member string) (*Method, bool) {
	for i := range c.MethodList {
		m := &c.MethodList[i]
		if m.Name == member || m.Name+m.Signature == member {
			return m, true
		}
	}
	return nil, false
}
