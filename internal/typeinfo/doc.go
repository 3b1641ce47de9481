// Package typeinfo describes record types for the storage layer.
//
// Describe walks the exported fields of a struct type in declaration order,
// flattening embedded structs, and classifies each field:
//
//   - Primitive: a scalar with a direct storage class (see package storage)
//   - Enum: a named type whose underlying kind is a primitive scalar
//   - Marshaler: a type implementing encoding.TextMarshaler and
//     encoding.TextUnmarshaler, stored through its text form
//   - Tuple: a fixed-size array of at most MaxTupleLen elements
//   - Collection: slices, maps and longer arrays, stored as JSON text
//   - Composite: nested structs, stored as JSON text
//
// A pointer field is the optional form of its element type and is stored as
// NULL when nil.
//
// Descriptions are immutable and cached per type until Forget is called.
//
// Field options come from the "orm" struct tag:
//
//	Name  string `orm:"name,pk"`   // column "name", primary key
//	Cache []byte `orm:"-"`         // not persisted
package typeinfo
