// Package filter builds the WHERE, ORDER BY and LIMIT sections of a
// single-table query from a flat list of terms.
//
//	clause, err := filter.Compile([]filter.Term{
//	    filter.Eq("name", "c"),
//	    filter.Between("age", 18, 65),
//	    filter.OrderBy("age", filter.Desc),
//	    filter.Limit(10),
//	}, filter.Options{Resolve: mapping.Resolve})
//
// produces
//
//	 WHERE "name" = ? AND "age" BETWEEN ? AND ? ORDER BY "age" DESC LIMIT ?
//
// with the arguments bound in order. Values are never embedded in the SQL
// text. Consecutive predicates are joined with AND; Or, Not and Raw change
// the connective explicitly. Keys name either a column or a record property
// and must resolve through Options.Resolve.
package filter
