package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"solana-event-log/internal/solana"
)

var (
	// ErrTruncated is returned when the payload ends before the schema does.
	ErrTruncated = errors.New("payload truncated")
	// ErrUnrecognized is returned when the discriminator cannot be resolved.
	ErrUnrecognized = errors.New("unrecognized instruction")
)

// DecodeError describes why a payload could not be decoded.
type DecodeError struct {
	Family        solana.ProgramFamily
	Discriminator uint32
	Field         string
	Offset        int
	Err           error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s/%d field %q at offset %d: %v",
			e.Family, e.Discriminator, e.Field, e.Offset, e.Err)
	}
	return fmt.Sprintf("decode %s/%d: %v", e.Family, e.Discriminator, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Value is a decoded field. Exactly one of the accessors is meaningful,
// selected by Kind.
type Value struct {
	Kind   FieldKind
	uint   uint64
	int    int64
	bytes  []byte
	fields map[string]Value
}

// Uint returns the value of a U8, U32 or U64 field.
func (v Value) Uint() uint64 { return v.uint }

// Int returns the value of an I64 field.
func (v Value) Int() int64 { return v.int }

// Bytes returns the raw bytes of a Pubkey or Blob field.
func (v Value) Bytes() []byte { return v.bytes }

// Pubkey returns the value of a Pubkey field.
func (v Value) Pubkey() solana.Pubkey {
	var p solana.Pubkey
	copy(p[:], v.bytes)
	return p
}

// Fields returns the sub-fields of a Struct value.
func (v Value) Fields() map[string]Value { return v.fields }

// Record is a decoded instruction payload.
type Record struct {
	Family        solana.ProgramFamily
	Discriminator uint32
	Instruction   string
	Values        map[string]Value
}

// Get looks up a value by name; dotted paths address struct members.
func (r *Record) Get(path string) (Value, bool) {
	fields := r.Values
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := fields[part]
		if !ok {
			return Value{}, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if v.Kind != KindStruct {
			return Value{}, false
		}
		fields = v.fields
	}
	return Value{}, false
}

// Uint returns the unsigned value at path, or 0.
func (r *Record) Uint(path string) uint64 {
	v, _ := r.Get(path)
	return v.Uint()
}

// Int returns the signed value at path, or 0.
func (r *Record) Int(path string) int64 {
	v, _ := r.Get(path)
	return v.Int()
}

// PubkeyString returns the base58 pubkey at path, or "".
func (r *Record) PubkeyString(path string) string {
	v, ok := r.Get(path)
	if !ok || v.Kind != KindPubkey {
		return ""
	}
	return v.Pubkey().String()
}

// Decoder decodes payloads against a Registry.
type Decoder struct {
	registry *Registry
}

// NewDecoder creates a decoder. A nil registry uses DefaultRegistry.
func NewDecoder(registry *Registry) *Decoder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Decoder{registry: registry}
}

// Discriminator reads the instruction tag for family from data.
func Discriminator(family solana.ProgramFamily, data []byte) (uint32, error) {
	width, ok := TagWidth(family)
	if !ok {
		return 0, &DecodeError{Family: family, Err: ErrUnrecognized}
	}
	if len(data) < width {
		return 0, &DecodeError{Family: family, Err: ErrUnrecognized}
	}
	switch width {
	case 1:
		return uint32(data[0]), nil
	default:
		return binary.LittleEndian.Uint32(data[:4]), nil
	}
}

// Decode resolves the discriminator of data, looks up its schema and walks
// the fields in order. Trailing bytes beyond the schema are ignored.
func (d *Decoder) Decode(family solana.ProgramFamily, data []byte) (*Record, error) {
	disc, err := Discriminator(family, data)
	if err != nil {
		return nil, err
	}
	schema, ok := d.registry.SchemaFor(family, disc)
	if !ok {
		return nil, &DecodeError{Family: family, Discriminator: disc, Err: ErrUnrecognized}
	}

	width, _ := TagWidth(family)
	w := walker{data: data, offset: width}
	values, err := w.walk(schema.Fields)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Family = family
			de.Discriminator = disc
		}
		return nil, err
	}

	return &Record{
		Family:        family,
		Discriminator: disc,
		Instruction:   schema.Instruction,
		Values:        values,
	}, nil
}

type walker struct {
	data   []byte
	offset int
}

func (w *walker) walk(fields []Field) (map[string]Value, error) {
	values := make(map[string]Value, len(fields))
	for _, f := range fields {
		v, err := w.read(f)
		if err != nil {
			return nil, err
		}
		values[f.Name] = v
	}
	return values, nil
}

func (w *walker) take(f Field, n int) ([]byte, error) {
	if n < 0 || len(w.data)-w.offset < n {
		return nil, &DecodeError{Field: f.Name, Offset: w.offset, Err: ErrTruncated}
	}
	b := w.data[w.offset : w.offset+n]
	w.offset += n
	return b, nil
}

func (w *walker) read(f Field) (Value, error) {
	if f.Kind == KindStruct {
		sub, err := w.walk(f.Fields)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindStruct, fields: sub}, nil
	}

	b, err := w.take(f, f.Width())
	if err != nil {
		return Value{}, err
	}

	switch f.Kind {
	case KindU8:
		return Value{Kind: f.Kind, uint: uint64(b[0])}, nil
	case KindU32:
		return Value{Kind: f.Kind, uint: uint64(binary.LittleEndian.Uint32(b))}, nil
	case KindU64:
		return Value{Kind: f.Kind, uint: binary.LittleEndian.Uint64(b)}, nil
	case KindI64:
		return Value{Kind: f.Kind, int: int64(binary.LittleEndian.Uint64(b))}, nil
	case KindPubkey, KindBlob:
		out := make([]byte, len(b))
		copy(out, b)
		return Value{Kind: f.Kind, bytes: out}, nil
	default:
		return Value{}, fmt.Errorf("field %q: unsupported kind %s", f.Name, f.Kind)
	}
}
