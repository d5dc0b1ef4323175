// Package query describes which variants an operation applies to and which
// payload fields a read returns.
//
// A Query selects variants by region list and/or explicit variant ids; the
// empty Query selects everything. A Projection trims payloads with an include
// or exclude field list before they leave the engine.
//
//	q, _ := query.Parse("1,2:100-2000")
//	proj := query.Include(query.FieldConsequenceTypes)
package query
