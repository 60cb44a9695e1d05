package table

import (
	_ "embed"
	"sync"
)

//go:embed pvl.yaml
var defaultWorkbook []byte

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the built-in mapping table. It is parsed once; callers
// must not mutate the result.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(defaultWorkbook, "<builtin>/"+DefaultFileName)
	})
	return defaultTable, defaultErr
}

// DefaultWorkbook returns the built-in workbook bytes.
func DefaultWorkbook() []byte {
	return append([]byte(nil), defaultWorkbook...)
}
