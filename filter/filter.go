package filter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nerrad567/graystore/internal/storage"
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// KeyOrder pairs a key with a sort direction.
type KeyOrder struct {
	Key   string
	Order Order
}

// Term is one element of a filter expression.
type Term interface {
	apply(b *builder) error
}

// Options controls how keys and values are compiled.
type Options struct {
	// Resolve maps a key to its column name. Nil accepts every key as a
	// column name.
	Resolve func(key string) (string, bool)
}

// Clause is a compiled filter. SQL is empty or starts with a space, ready
// to be appended to a statement.
type Clause struct {
	SQL  string
	Args []any
}

// Compile turns terms into a clause.
func Compile(terms []Term, opts Options) (Clause, error) {
	b := &builder{opts: opts}
	for _, t := range terms {
		if t == nil {
			continue
		}
		if err := t.apply(b); err != nil {
			return Clause{}, err
		}
	}
	return b.clause(), nil
}

// Eq matches rows where key equals value.
func Eq(key string, value any) Term { return compare{key, "=", value} }

// Neq matches rows where key differs from value.
func Neq(key string, value any) Term { return compare{key, "<>", value} }

// Gt matches rows where key is greater than value.
func Gt(key string, value any) Term { return compare{key, ">", value} }

// Gte matches rows where key is greater than or equal to value.
func Gte(key string, value any) Term { return compare{key, ">=", value} }

// Lt matches rows where key is less than value.
func Lt(key string, value any) Term { return compare{key, "<", value} }

// Lte matches rows where key is less than or equal to value.
func Lte(key string, value any) Term { return compare{key, "<=", value} }

// Like matches rows where key matches an SQL LIKE pattern.
func Like(key string, pattern string) Term { return compare{key, "LIKE", pattern} }

// In matches rows where key equals one of values.
func In(key string, values ...any) Term { return in{key, values} }

// Between matches rows where key lies in [low, high].
func Between(key string, low, high any) Term { return between{key, low, high} }

// Within is an unkeyed inclusive range applied to the keys of the
// preceding Keys term.
func Within(low, high any) Term { return between{"", low, high} }

// Keys injects column names into the WHERE section verbatim (after
// resolution), for use with Within or Raw.
func Keys(keys ...string) Term { return keyList(keys) }

// Not negates the predicate that follows.
func Not() Term { return not{} }

// Or joins the surrounding predicates with OR instead of AND.
func Or() Term { return or{} }

// Raw appends sql verbatim to the WHERE section with its own bound
// arguments. It may open the section, stand alone, or sit between other
// predicates; no AND is inserted around it.
func Raw(sql string, args ...any) Term { return raw{sql, args} }

// OrderBy sorts by key, ascending unless an order is given.
func OrderBy(key string, order ...Order) Term {
	o := Asc
	if len(order) > 0 {
		o = order[0]
	}
	return orderBy{{Key: key, Order: o}}
}

// OrderByKeys sorts by several keys in turn.
func OrderByKeys(keys ...KeyOrder) Term { return orderBy(keys) }

// Limit caps the number of rows. The last Limit wins.
func Limit(n int) Term { return limit(n) }

type builder struct {
	opts Options

	// where holds the predicate text; clause prefixes WHERE when it is
	// non-empty.
	where     strings.Builder
	whereArgs []any
	// joinable is set after a complete predicate, so the next one needs a
	// connective.
	joinable bool
	lastKeys []string

	order []string

	limit *int
}

func (b *builder) resolve(key string) (string, error) {
	if b.opts.Resolve == nil {
		return QuoteIdent(key), nil
	}
	col, ok := b.opts.Resolve(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return QuoteIdent(col), nil
}

// predicate appends a predicate, inserting AND when the previous one is
// complete.
func (b *builder) predicate(sql string, args ...any) {
	if b.joinable {
		b.where.WriteString(" AND")
	}
	b.where.WriteString(" ")
	b.where.WriteString(sql)
	b.whereArgs = append(b.whereArgs, args...)
	b.joinable = true
}

func (b *builder) connective(word string) {
	b.where.WriteString(" ")
	b.where.WriteString(word)
	b.joinable = false
}

func (b *builder) clause() Clause {
	var sql strings.Builder
	args := append([]any(nil), b.whereArgs...)

	if b.where.Len() > 0 {
		sql.WriteString(" WHERE")
		sql.WriteString(b.where.String())
	}
	if len(b.order) > 0 {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(b.order, ", "))
	}
	if b.limit != nil {
		sql.WriteString(" LIMIT ?")
		args = append(args, *b.limit)
	}
	return Clause{SQL: sql.String(), Args: args}
}

type compare struct {
	key   string
	op    string
	value any
}

func (t compare) apply(b *builder) error {
	col, err := b.resolve(t.key)
	if err != nil {
		return err
	}
	b.predicate(col+" "+t.op+" ?", Normalize(t.value))
	return nil
}

type in struct {
	key    string
	values []any
}

func (t in) apply(b *builder) error {
	col, err := b.resolve(t.key)
	if err != nil {
		return err
	}
	marks := make([]string, len(t.values))
	args := make([]any, len(t.values))
	for i, v := range t.values {
		marks[i] = "?"
		args[i] = Normalize(v)
	}
	b.predicate(col+" IN ("+strings.Join(marks, ", ")+")", args...)
	return nil
}

type between struct {
	key       string
	low, high any
}

func (t between) apply(b *builder) error {
	if t.key == "" {
		if len(b.lastKeys) == 0 {
			return fmt.Errorf("%w: unkeyed range without preceding keys", ErrInvalidTerm)
		}
		// The range completes the predicate started by Keys.
		b.where.WriteString(" BETWEEN ? AND ?")
		b.whereArgs = append(b.whereArgs, Normalize(t.low), Normalize(t.high))
		b.lastKeys = nil
		b.joinable = true
		return nil
	}
	col, err := b.resolve(t.key)
	if err != nil {
		return err
	}
	b.predicate(col+" BETWEEN ? AND ?", Normalize(t.low), Normalize(t.high))
	return nil
}

type keyList []string

func (t keyList) apply(b *builder) error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty key list", ErrInvalidTerm)
	}
	cols := make([]string, len(t))
	for i, k := range t {
		col, err := b.resolve(k)
		if err != nil {
			return err
		}
		cols[i] = col
	}
	expr := cols[0]
	if len(cols) > 1 {
		expr = "(" + strings.Join(cols, ", ") + ")"
	}
	b.predicate(expr)
	b.lastKeys = cols
	// A bare key list is an operand, not a complete predicate.
	b.joinable = false
	return nil
}

type not struct{}

func (not) apply(b *builder) error {
	if b.joinable {
		b.where.WriteString(" AND")
	}
	b.where.WriteString(" NOT")
	b.joinable = false
	return nil
}

type or struct{}

func (or) apply(b *builder) error {
	b.connective("OR")
	return nil
}

type raw struct {
	sql  string
	args []any
}

func (t raw) apply(b *builder) error {
	if strings.TrimSpace(t.sql) == "" {
		return fmt.Errorf("%w: empty raw fragment", ErrInvalidTerm)
	}
	b.where.WriteString(" ")
	b.where.WriteString(t.sql)
	for _, a := range t.args {
		b.whereArgs = append(b.whereArgs, Normalize(a))
	}
	b.joinable = false
	return nil
}

type orderBy []KeyOrder

func (t orderBy) apply(b *builder) error {
	for _, ko := range t {
		col, err := b.resolve(ko.Key)
		if err != nil {
			return err
		}
		switch ko.Order {
		case "", Asc:
			b.order = append(b.order, col+" ASC")
		case Desc:
			b.order = append(b.order, col+" DESC")
		default:
			return fmt.Errorf("%w: order %q", ErrInvalidTerm, ko.Order)
		}
	}
	return nil
}

type limit int

func (t limit) apply(b *builder) error {
	if t < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidTerm, int(t))
	}
	n := int(t)
	b.limit = &n
	return nil
}

// QuoteIdent quotes a column name.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Normalize converts a filter value to the form it is stored in, so that
// comparisons match the column content: timestamps become text, uint64
// decimal text, UUIDs blobs and enumerations their raw value. Values with no
// storage class are passed to the driver unchanged.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	if sv, ok := v.(storage.Value); ok {
		return sv.Native()
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if u := storage.Underlying(rv.Type()); u != nil && !storage.IsScalar(rv.Type()) {
		rv = rv.Convert(u)
	}
	if sv, ok := storage.Encode(rv); ok {
		return sv.Native()
	}
	return v
}
