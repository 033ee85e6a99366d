package columns

import (
	"fmt"

	"mailcheck/internal/model"
)

// FallbackColumnCount is offered when positional options are needed before
// any sample row is known.
const FallbackColumnCount = 10

const (
	helpHeaders    = "Select the column containing email addresses"
	helpPositional = "Select the column index containing email addresses"
)

// DeriveOptions returns the selectable columns for a sample row. With
// headers the cells themselves are the options; otherwise columns are
// offered by position.
func DeriveOptions(sample []string, hasHeaders bool) []model.ColumnOption {
	if hasHeaders && len(sample) > 0 {
		out := make([]model.ColumnOption, 0, len(sample))
		for _, cell := range sample {
			out = append(out, model.ColumnOption{Value: model.HeaderColumn(cell), Label: cell})
		}
		return out
	}

	n := len(sample)
	if n == 0 {
		n = FallbackColumnCount
	}
	out := make([]model.ColumnOption, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.ColumnOption{
			Value: model.IndexColumn(i),
			Label: fmt.Sprintf("Column %d", i+1),
		})
	}
	return out
}

func HelpText(hasHeaders bool) string {
	if hasHeaders {
		return helpHeaders
	}
	return helpPositional
}
