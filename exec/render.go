package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TheAIBot/treadle/ir"
)

// RenderComputation renders, for each named symbol, the expression that
// produced its current value together with the operand values, one block
// per name. Unknown names render as such rather than failing; this is a
// debugging aid.
func RenderComputation(st *SymbolTable, store *DataStore, names ...string) string {
	var b strings.Builder
	for _, name := range names {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		renderOne(&b, st, store, name)
	}
	return b.String()
}

func renderOne(b *strings.Builder, st *SymbolTable, store *DataStore, name string) {
	sym := st.Get(name)
	if sym == nil {
		fmt.Fprintf(b, "%s: unknown symbol\n", name)
		return
	}
	a := st.AssignerFor(sym)
	if a == nil || a.Expression() == nil {
		fmt.Fprintf(b, "%s = %s  (%s)\n", sym.Name, store.GetValue(sym), sym.Kind)
		return
	}
	fmt.Fprintf(b, "%s <= %s  (= %s)\n", sym.Name, a.Expression().String(), store.GetValue(sym))
	var refs []*Symbol
	if err := st.collectRefs(a.Prefix(), a.Expression(), &refs); err != nil {
		fmt.Fprintf(b, "  ! %v\n", err)
		return
	}
	seen := make(map[*Symbol]bool)
	operands := refs[:0]
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			operands = append(operands, r)
		}
	}
	sort.Slice(operands, func(i, j int) bool { return operands[i].Name < operands[j].Name })
	for _, r := range operands {
		fmt.Fprintf(b, "  %s = %s\n", r.Name, store.GetValue(r))
	}
}

// renderExprValue is used by verbose tracing to show one-line summaries.
func renderExprValue(store *DataStore, sym *Symbol, expr ir.Expression) string {
	if expr == nil {
		return fmt.Sprintf("%s = %s", sym.Name, store.GetValue(sym))
	}
	return fmt.Sprintf("%s <= %s = %s", sym.Name, expr.String(), store.GetValue(sym))
}
