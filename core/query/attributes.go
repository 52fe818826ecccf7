// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package query

// Kind is the SQL type family of an attribute
type Kind int

// attribute kinds
const (
	Text Kind = iota
	Integer
)

// Table is a table name. Tables are only declared in this package.
type Table struct {
	name string
}

// Name returns the SQL name of the table
func (t Table) Name() string {
	return t.name
}

// Attribute is an allow-listed column. Its SQL identifier cannot be set from outside
// this package, so every identifier that reaches a rendered query comes from an
// allow-list.
type Attribute struct {
	name   string
	column string
	kind   Kind
}

// Name returns the name clients use for the attribute
func (a Attribute) Name() string {
	return a.name
}

// Kind returns the type family
func (a Attribute) Kind() Kind {
	return a.kind
}

// AllowList is a fixed, ordered set of attributes of one table
type AllowList struct {
	table      Table
	attributes []Attribute
	byName     map[string]Attribute
}

func newAllowList(table Table, attributes ...Attribute) *AllowList {
	l := &AllowList{table: table, attributes: attributes, byName: make(map[string]Attribute, len(attributes))}
	for _, a := range attributes {
		l.byName[a.name] = a
	}
	return l
}

// Table returns the table the attributes belong to
func (l *AllowList) Table() Table {
	return l.table
}

// Lookup returns the attribute with the given name. Names are case sensitive.
func (l *AllowList) Lookup(name string) (Attribute, bool) {
	a, ok := l.byName[name]
	return a, ok
}

// Names returns the names of all attributes in declaration order
func (l *AllowList) Names() []string {
	names := make([]string, len(l.attributes))
	for i, a := range l.attributes {
		names[i] = a.name
	}
	return names
}

// HikerTable holds one row per hiker
var HikerTable = Table{name: "Join_Hikers1"}

// hiker attributes
var (
	HikerEmail           = Attribute{name: "HikerEmail", column: "HikerEmail", kind: Text}
	HikerName            = Attribute{name: "Name", column: "Name", kind: Text}
	NumofTrailsCompleted = Attribute{name: "NumofTrailsCompleted", column: "NumofTrailsCompleted", kind: Integer}
	HikerClubEmail       = Attribute{name: "ClubEmail", column: "ClubEmail", kind: Text}
)

// HikerAttributes is the allow-list for selection and projection on hikers
var HikerAttributes = newAllowList(HikerTable, HikerEmail, HikerName, NumofTrailsCompleted, HikerClubEmail)
