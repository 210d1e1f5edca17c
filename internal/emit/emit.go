// Package emit writes a symbol sequence back out in nm -n textual form.
package emit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kas-alias/kasalias/internal/symtab"
)

// Write renders records as "%08lx %c %s\n" per spec.md §4.5: lowercase hex
// address zero-padded to at least 8 digits (longer addresses widen
// naturally), the type character, the name. Emission order is whatever
// order records currently hold; cmd/kas-alias passes the sequence the
// alias engine's Run returns, which is address-sorted unless the input was
// already processed, in which case it keeps the input order.
func Write(w io.Writer, records []symtab.Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := fmt.Fprintf(bw, "%08x %c %s\n", r.Address, r.Type, r.Name); err != nil {
			return err
		}
	}
	return bw.Flush()
}
