// Package orm persists Go structs in embedded SQLite databases without
// hand-written column definitions, SQL statements or migrations.
//
// A Manager owns one connection per database file and all type, mapping
// and schema caches. Record operations are generic functions over the
// record type:
//
//	m := orm.New(orm.Config{Dir: "/var/lib/app"})
//	defer m.Close()
//
//	err := orm.Push(ctx, m, Person{Name: "c", Age: 30})
//	people, err := orm.Fetch[Person](ctx, m, filter.Eq("name", "c"))
//	n, err := orm.Deletes(ctx, m, people...)
//
// Before first use in a Manager, a record type's table is created, or
// migrated when the type declares a higher SchemaVersion than the one
// persisted in the database file. This happens once per table even under
// concurrent callers.
//
// # Table definition
//
// A record type is any struct with at least one persistable field. Defaults
// can be overridden by implementing optional methods on the type:
//
//	func (Person) TableName() string       // default "orm_Person_t"
//	func (Person) SchemaVersion() float64  // default 0
//	func (Person) DatabaseName() string    // default Config.DefaultDatabase
//
// The primary key is declared with the struct tag `orm:"column,pk"`. Tables
// without one get a synthesised auto-increment row id and always append.
//
// Records implementing Normalizer on their pointer type are normalised after
// every fetch and before every push.
package orm
