// Package layout decodes fixed-width instruction payloads against a registry
// of schemas keyed by (program family, discriminator).
package layout

import "solana-event-log/internal/solana"

// FieldKind is the wire type of a schema field.
type FieldKind int

const (
	KindU8 FieldKind = iota + 1
	KindU32
	KindU64
	KindI64
	KindPubkey
	KindBlob
	KindStruct
)

func (k FieldKind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindI64:
		return "i64"
	case KindPubkey:
		return "pubkey"
	case KindBlob:
		return "blob"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Field is one named entry of a schema. Size is used by KindBlob only;
// Fields by KindStruct only.
type Field struct {
	Name   string
	Kind   FieldKind
	Size   int
	Fields []Field
}

// Width returns the number of payload bytes the field consumes.
func (f Field) Width() int {
	switch f.Kind {
	case KindU8:
		return 1
	case KindU32:
		return 4
	case KindU64, KindI64:
		return 8
	case KindPubkey:
		return solana.PubkeySize
	case KindBlob:
		return f.Size
	case KindStruct:
		total := 0
		for _, sub := range f.Fields {
			total += sub.Width()
		}
		return total
	default:
		return 0
	}
}

// Field constructors.

func U8(name string) Field     { return Field{Name: name, Kind: KindU8} }
func U32(name string) Field    { return Field{Name: name, Kind: KindU32} }
func U64(name string) Field    { return Field{Name: name, Kind: KindU64} }
func I64(name string) Field    { return Field{Name: name, Kind: KindI64} }
func Pubkey(name string) Field { return Field{Name: name, Kind: KindPubkey} }

func Blob(name string, size int) Field {
	return Field{Name: name, Kind: KindBlob, Size: size}
}

func Struct(name string, fields ...Field) Field {
	return Field{Name: name, Kind: KindStruct, Fields: fields}
}

// Schema describes the payload that follows the discriminator tag.
type Schema struct {
	// Instruction is the instruction type name, e.g. "transfer".
	Instruction string
	Fields      []Field
}

// Width returns the number of payload bytes after the tag.
func (s Schema) Width() int {
	total := 0
	for _, f := range s.Fields {
		total += f.Width()
	}
	return total
}
