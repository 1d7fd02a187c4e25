package core

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoData is returned when a partial update carries no field.
var ErrNoData = errors.New("No data")

type (
	// Field is one named value of a partial update.
	Field struct {
		Name  string
		Value interface{}
	}

	// Fields is an ordered list of changed fields; the order is kept in the generated statement.
	Fields []Field
)

// Set appends (or replaces) the value of the named field.
func (f *Fields) Set(name string, value interface{}) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

func (f Fields) Has(name string) bool {
	for _, fld := range f {
		if fld.Name == name {
			return true
		}
	}
	return false
}

func (f Fields) Get(name string) (interface{}, bool) {
	for _, fld := range f {
		if fld.Name == name {
			return fld.Value, true
		}
	}
	return nil, false
}

// PartialUpdate builds the SET clause of a parameterized UPDATE statement.
// columns maps field names to column names; a name without a mapping is used as is.
// Placeholders are numbered from $1, so the caller's key placeholder is $len(values)+1.
func PartialUpdate(data Fields, columns map[string]string) (setCols string, values []interface{}, err error) {
	if len(data) == 0 {
		return "", nil, NewValidationError(ErrNoData)
	}

	cols := make([]string, 0, len(data))
	values = make([]interface{}, 0, len(data))
	for i, fld := range data {
		col, ok := columns[fld.Name]
		if !ok {
			col = fld.Name
		}
		cols = append(cols, `"`+col+`"=$`+strconv.Itoa(i+1))
		values = append(values, fld.Value)
	}
	return strings.Join(cols, ", "), values, nil
}
