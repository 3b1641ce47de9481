// Package codec converts records to and from column rows.
//
// Encoding walks a record's field descriptors and produces one storage value
// per mapped column. Nil optional fields produce no entry, so the column is
// left NULL. Tuples, collections and nested composites are serialised as JSON
// text.
//
// Decoding reverses the process. For each column it tries, in order: direct
// primitive conversion, the raw value of an enumeration, text unmarshalling,
// and finally JSON decoding into tuples, collections and nested composites.
// By default decoding is lenient: a missing column, a NULL or content that
// does not convert leaves the field at its zero value. A strict codec reports
// a DecodeError instead.
package codec
