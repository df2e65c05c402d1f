// Package remote talks to the remote relational backend: pure field-name and
// shape translation between the application's camelCase records and the
// backend's lower-case column projection, a REST client issuing one request
// per collection operation, and a websocket subscription for change
// notifications.
package remote

import (
	"fmt"
	"reflect"

	"controljm/internal/core"
)

// FieldMapping declares one column of a remote table projection: the local
// camelCase field name, the remote lower-case column name, and whether the
// column stores a JSON-text encoding of a sequence value.
type FieldMapping struct {
	Local    string
	Remote   string
	JSONText bool
}

// TableSchema is the bidirectional projection of one local collection onto
// its remote table.
type TableSchema struct {
	Collection core.Collection
	Table      string
	Fields     []FieldMapping

	localIndex  map[string]FieldMapping
	remoteIndex map[string]FieldMapping
}

// schemas declares every remote table projection. The expenses table stores
// the expense name under the legacy gastonombre column; that exception is
// table-specific and must not be generalized.
var schemas = buildSchemas([]TableSchema{
	{
		Collection: core.Expenses,
		Table:      "expenses",
		Fields: []FieldMapping{
			{Local: "id", Remote: "id"},
			{Local: "userId", Remote: "userid"},
			{Local: "name", Remote: "gastonombre"},
			{Local: "amount", Remote: "amount"},
			{Local: "category", Remote: "category"},
			{Local: "week", Remote: "week"},
			{Local: "year", Remote: "year"},
			{Local: "months", Remote: "months", JSONText: true},
			{Local: "isInstallment", Remote: "isinstallment"},
			{Local: "totalInstallments", Remote: "totalinstallments"},
			{Local: "currentInstallment", Remote: "currentinstallment"},
			{Local: "startDate", Remote: "startdate"},
			{Local: "initialBalance", Remote: "initialbalance"},
			{Local: "interestRate", Remote: "interestrate"},
		},
	},
	{
		Collection: core.Incomes,
		Table:      "incomes",
		Fields: []FieldMapping{
			{Local: "id", Remote: "id"},
			{Local: "userId", Remote: "userid"},
			{Local: "name", Remote: "name"},
			{Local: "amount", Remote: "amount"},
			{Local: "category", Remote: "category"},
			{Local: "date", Remote: "date"},
		},
	},
	{
		Collection: core.Payments,
		Table:      "payments",
		Fields: []FieldMapping{
			{Local: "id", Remote: "id"},
			{Local: "userId", Remote: "userid"},
			{Local: "expenseId", Remote: "expenseid"},
			{Local: "expenseName", Remote: "expensename"},
			{Local: "category", Remote: "category"},
			{Local: "amount", Remote: "amount"},
			{Local: "date", Remote: "date"},
			{Local: "note", Remote: "note"},
			{Local: "discountAmount", Remote: "discountamount"},
			{Local: "discountGoalId", Remote: "discountgoalid"},
		},
	},
	{
		Collection: core.Goals,
		Table:      "goals",
		Fields: []FieldMapping{
			{Local: "id", Remote: "id"},
			{Local: "userId", Remote: "userid"},
			{Local: "name", Remote: "name"},
			{Local: "targetAmount", Remote: "targetamount"},
			{Local: "currentAmount", Remote: "currentamount"},
			{Local: "transactions", Remote: "transactions", JSONText: true},
		},
	},
	{
		Collection: core.BankAccounts,
		Table:      "bank_accounts",
		Fields: []FieldMapping{
			{Local: "id", Remote: "id"},
			{Local: "userId", Remote: "userid"},
			{Local: "name", Remote: "name"},
			{Local: "type", Remote: "type"},
			{Local: "balance", Remote: "balance"},
		},
	},
})

func buildSchemas(list []TableSchema) map[core.Collection]*TableSchema {
	out := make(map[core.Collection]*TableSchema, len(list))
	for i := range list {
		s := list[i]
		s.localIndex = make(map[string]FieldMapping, len(s.Fields))
		s.remoteIndex = make(map[string]FieldMapping, len(s.Fields))
		for _, f := range s.Fields {
			s.localIndex[f.Local] = f
			s.remoteIndex[f.Remote] = f
		}
		out[s.Collection] = &s
	}
	return out
}

// SchemaFor returns the table schema for a collection, or nil if the
// collection is unknown.
func SchemaFor(collection core.Collection) *TableSchema {
	return schemas[collection]
}

// TableFor returns the remote table name for a collection. Unknown
// collections map to their own name, matching the source's permissive
// table map.
func TableFor(collection core.Collection) string {
	if s := schemas[collection]; s != nil {
		return s.Table
	}
	return string(collection)
}

// modelPrototypes ties each collection to its declared record shape.
var modelPrototypes = map[core.Collection]any{
	core.Expenses:     core.Expense{},
	core.Incomes:      core.Income{},
	core.Payments:     core.Payment{},
	core.Goals:        core.Goal{},
	core.BankAccounts: core.BankAccount{},
}

// VerifySchemas checks every table schema for completeness against the
// record model: each declared JSON field must have a mapping, and no two
// mappings may collide on either side. Run at startup so model/schema drift
// fails fast instead of silently passing fields through.
func VerifySchemas() error {
	for _, collection := range core.Collections() {
		schema := schemas[collection]
		if schema == nil {
			return fmt.Errorf("no remote schema for collection %s", collection)
		}

		seenLocal := make(map[string]struct{}, len(schema.Fields))
		seenRemote := make(map[string]struct{}, len(schema.Fields))
		for _, f := range schema.Fields {
			if _, dup := seenLocal[f.Local]; dup {
				return fmt.Errorf("%s: duplicate local field %q", collection, f.Local)
			}
			if _, dup := seenRemote[f.Remote]; dup {
				return fmt.Errorf("%s: duplicate remote column %q", collection, f.Remote)
			}
			seenLocal[f.Local] = struct{}{}
			seenRemote[f.Remote] = struct{}{}
		}

		for _, field := range jsonFields(modelPrototypes[collection]) {
			if _, ok := schema.localIndex[field]; !ok {
				return fmt.Errorf("%s: model field %q has no remote mapping", collection, field)
			}
		}
	}
	return nil
}

// jsonFields lists the declared JSON field names of a model struct.
func jsonFields(prototype any) []string {
	t := reflect.TypeOf(prototype)
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		for j := 0; j < len(tag); j++ {
			if tag[j] == ',' {
				tag = tag[:j]
				break
			}
		}
		fields = append(fields, tag)
	}
	return fields
}
