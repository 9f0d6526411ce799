package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// modelFields caches the db-tagged field indexes per struct type.
var modelFields sync.Map // reflect.Type -> []modelField

type modelField struct {
	column string
	index  int
}

// InsertModel builds an INSERT from every db-tagged exported field of model,
// followed by suffix (usually an ON CONFLICT clause).
func InsertModel(table string, model any, suffix string) (string, []any, error) {
	value, err := structValue(model)
	if err != nil {
		return "", nil, err
	}

	fields := fieldsOf(value.Type())
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("model has no db columns")
	}
	cols := make([]string, 0, len(fields))
	vals := make([]any, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.column)
		vals = append(vals, value.Field(f.index).Interface())
	}

	return InsertInto(table).
		Columns(cols...).
		Values(vals...).
		Suffix(suffix).
		ToSQL()
}

// ColumnsOf lists the db columns of model in field order, for selects that
// scan into the same struct.
func ColumnsOf(model any) []string {
	value, err := structValue(model)
	if err != nil {
		return nil
	}
	fields := fieldsOf(value.Type())
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.column)
	}
	return cols
}

func structValue(model any) (reflect.Value, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return reflect.Value{}, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("model must be struct")
	}
	return value, nil
}

func fieldsOf(typ reflect.Type) []modelField {
	if cached, ok := modelFields.Load(typ); ok {
		return cached.([]modelField)
	}

	fields := make([]modelField, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue
		}
		col := strings.TrimSpace(strings.Split(field.Tag.Get("db"), ",")[0])
		if col == "" || col == "-" {
			continue
		}
		fields = append(fields, modelField{column: col, index: i})
	}

	modelFields.Store(typ, fields)
	return fields
}
