package dex

import (
	"errors"
	"fmt"
	"strings"
)

// fakeClass is a minimal ClassDefinition for exercising the overlay,
// history and checkpoint machinery without a real codec.
type fakeClass struct {
	name    string
	super   string
	ifaces  []string
	body    string
	methods []MethodSummary
}

func (c *fakeClass) Name() string             { return c.name }
func (c *fakeClass) SuperName() string        { return c.super }
func (c *fakeClass) Interfaces() []string     { return c.ifaces }
func (c *fakeClass) AccessFlags() []string    { return nil }
func (c *fakeClass) Fields() []FieldSummary   { return nil }
func (c *fakeClass) Methods() []MethodSummary { return c.methods }
func (c *fakeClass) Raw() []byte              { return nil }

// fakeCodec round-trips classes through a "name|body" textual form.
// Text containing "!" fails to assemble.
type fakeCodec struct{}

var errBadSource = errors.New("bad source")

func (fakeCodec) DecodeImage(data []byte) ([]ClassDefinition, error) { return nil, errBadSource }
func (fakeCodec) EncodeImage(classes []ClassDefinition) ([]byte, error) {
	return nil, errBadSource
}

func (fakeCodec) Disassemble(def ClassDefinition) (string, error) {
	c := def.(*fakeClass)
	return c.name + "|" + c.body, nil
}

func (fakeCodec) DisassembleMember(def ClassDefinition, member string) (string, error) {
	return "", fmt.Errorf("member %s: %w", member, ErrNotFound)
}

func (fakeCodec) Assemble(text string) (ClassDefinition, error) {
	if strings.Contains(text, "!") {
		return nil, errBadSource
	}
	name, body, ok := strings.Cut(text, "|")
	if !ok {
		return nil, errBadSource
	}
	return &fakeClass{name: name, body: body}, nil
}

func (fakeCodec) Decompile(defs []ClassDefinition, opts DecompileOptions) (string, error) {
	return "", errBadSource
}

func cls(name, body string) *fakeClass {
	return &fakeClass{name: name, super: "Ljava/lang/Object;", body: body}
}
