package smali

import (
	"fmt"

	"dexedit/dex"
)

// Codec implements dex.Codec over the smali class model.
type Codec struct{}

// NewCodec returns the smali codec.
func NewCodec() *Codec { return &Codec{} }

var _ dex.Codec = (*Codec)(nil)

// DecodeImage implements dex.Codec.
func (c *Codec) DecodeImage(data []byte) ([]dex.ClassDefinition, error) {
	classes, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	out := make([]dex.ClassDefinition, len(classes))
	for i, cls := range classes {
		out[i] = cls
	}
	return out, nil
}

// EncodeImage implements dex.Codec.
func (c *Codec) EncodeImage(defs []dex.ClassDefinition) ([]byte, error) {
	classes := make([]*Class, len(defs))
	for i, def := range defs {
		cls, err := asClass(def)
		if err != nil {
			return nil, err
		}
		classes[i] = cls
	}
	return encodeImage(classes)
}

// Disassemble implements dex.Codec.
func (c *Codec) Disassemble(def dex.ClassDefinition) (string, error) {
	cls, err := asClass(def)
	if err != nil {
		return "", err
	}
	return Render(cls), nil
}

// DisassembleMember implements dex.Codec.
func (c *Codec) DisassembleMember(def dex.ClassDefinition, member string) (string, error) {
	cls, err := asClass(def)
	if err != nil {
		return "", err
	}
	m, ok := cls.method(member)
	if !ok {
		return "", fmt.Errorf("method %s in %s: %w", member, cls.ClassName, dex.ErrNotFound)
	}
	return RenderMethod(m), nil
}

// Assemble implements dex.Codec.
func (c *Codec) Assemble(text string) (dex.ClassDefinition, error) {
	return Parse(text)
}

// Decompile implements dex.Codec.
func (c *Codec) Decompile(defs []dex.ClassDefinition, opts dex.DecompileOptions) (string, error) {
	classes := make([]*Class, len(defs))
	for i, def := range defs {
		cls, err := asClass(def)
		if err != nil {
			return "", err
		}
		classes[i] = cls
	}
	return Decompile(classes, opts), nil
}

func asClass(def dex.ClassDefinition) (*Class, error) {
	cls, ok := def.(*Class)
	if !ok {
		return nil, fmt.Errorf("foreign class definition %T for %s", def, def.Name())
	}
	return cls, nil
}
