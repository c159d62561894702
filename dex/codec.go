package dex

// OpKind classifies a decoded instruction for search purposes.
type OpKind uint8

const (
	// OpOther covers instructions with no special search handling.
	OpOther OpKind = iota

	// OpInvoke marks method call sites (invoke family).
	OpInvoke

	// OpFieldAccess marks field reads and writes
	// (iget/iput/sget/sput family).
	OpFieldAccess

	// OpConstLoad marks constant-load instructions.
	OpConstLoad
)

// String returns a human-readable name for an OpKind.
func (k OpKind) String() string {
	switch k {
	case OpInvoke:
		return "invoke"
	case OpFieldAccess:
		return "field"
	case OpConstLoad:
		return "const"
	default:
		return "other"
	}
}

// Instruction is the canonical textual rendering of one decoded
// instruction, tagged with its opcode category.
type Instruction struct {
	Kind OpKind
	Text string
}

// FieldSummary describes one declared field.
type FieldSummary struct {
	Name string
	Type string
}

// MethodSummary describes one declared method and its decoded
// instruction stream.
type MethodSummary struct {
	Name         string
	Signature    string
	Instructions []Instruction
}

// ClassDefinition is one compiled class as produced by the codec.
// Definitions are immutable: edits always produce a new definition.
// The core only consumes identity, declared relationships, member
// summaries and the raw record bytes.
type ClassDefinition interface {
	// Name returns the fully-qualified binary type name, the class's
	// globally unique identifier within a document.
	Name() string

	// SuperName returns the declared superclass identifier.
	SuperName() string

	// Interfaces returns the declared interface identifiers.
	Interfaces() []string

	// AccessFlags returns the declared access flags.
	AccessFlags() []string

	Fields() []FieldSummary
	Methods() []MethodSummary

	// Raw returns the encoded record bytes the definition was decoded
	// from, or nil for definitions produced by Assemble. Encoders reuse
	// raw bytes so untouched classes re-encode byte-identically.
	Raw() []byte
}

// DecompileOptions control the higher-level textual rendering.
type DecompileOptions struct {
	// Deobfuscate renames identifiers whose simple name falls outside
	// [MinNameLen, MaxNameLen] to deterministic readable names.
	Deobfuscate bool
	MinNameLen  int
	MaxNameLen  int
}

// Codec is the external decode/encode capability consumed by the
// document. Implementations are pure and stateless from the core's
// perspective.
type Codec interface {
	// DecodeImage parses raw image bytes into the ordered class pool.
	DecodeImage(data []byte) ([]ClassDefinition, error)

	// EncodeImage serializes a class pool back to image bytes.
	EncodeImage(classes []ClassDefinition) ([]byte, error)

	// Disassemble renders a whole class to its textual source form.
	Disassemble(def ClassDefinition) (string, error)

	// DisassembleMember renders a single named member. The returned
	// error wraps ErrNotFound when the member does not exist.
	DisassembleMember(def ClassDefinition, member string) (string, error)

	// Assemble parses whole-class textual source into a definition.
	Assemble(text string) (ClassDefinition, error)

	// Decompile renders one or more classes to a higher-level
	// source-like form.
	Decompile(defs []ClassDefinition, opts DecompileOptions) (string, error)
}
