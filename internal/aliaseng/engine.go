// Package aliaseng drives the alias-synthesis pipeline described in
// spec.md §4.2: ingest, detect idempotence, sort by name, classify and
// enumerate duplicates, synthesize and insert an alias per aliasable
// candidate, sort by address. Emitting the result is left to the caller.
package aliaseng

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kas-alias/kasalias/internal/addr2line"
	"github.com/kas-alias/kasalias/internal/classify"
	"github.com/kas-alias/kasalias/internal/symtab"
	"github.com/kas-alias/kasalias/internal/version"
)

// markerAt and markerAlias are the two idempotence markers spec.md §6
// recognizes: presence of either in any ingested name short-circuits the
// run. Only FormAlias output carries a marker ("__alias__1"); the names
// FormAt and FormLegacy produce contain neither.
const (
	markerAt    = "@_"
	markerAlias = "__alias__1"
)

// Options configures one engine run.
type Options struct {
	AliasData    bool
	AliasDataAll bool
	SuffixForm   version.SuffixForm
	// Progress, when non-nil, is called with (processed, total) as
	// candidates are classified; used to drive a progress bar.
	Progress func(processed, total int)
}

// Engine owns the symbol store, the optional addr2line bridge, and the
// per-run suffix serial for one pipeline pass. Per spec.md §9, the serial
// and the bridge handle are threaded explicitly through Engine rather than
// held in package-level state.
type Engine struct {
	store      *symtab.Store
	classifier *classify.Classifier
	bridge     *addr2line.Bridge // nil: always use the serial fallback
	opts       Options
	serial     uint64

	alreadyProcessed bool
	insertMiss       *InsertMissError
}

// InsertMissError signals that InsertAfter failed to find its anchor,
// which spec.md §7 treats as an internal invariant breakage and therefore
// fatal.
type InsertMissError struct {
	Name    string
	Address uint64
}

func (e *InsertMissError) Error() string {
	return fmt.Sprintf("insert anchor missing for %q at address %#x", e.Name, e.Address)
}

// New constructs an engine. bridge may be nil, in which case every
// candidate falls back to the serial suffix form.
func New(classifier *classify.Classifier, bridge *addr2line.Bridge, opts Options) *Engine {
	return &Engine{
		store:      symtab.New(),
		classifier: classifier,
		bridge:     bridge,
		opts:       opts,
	}
}

// Ingest reads an nm -n listing line by line. Each well-formed line has
// the shape "<hex-address> <type-char> <name>"; malformed lines are
// silently skipped (ParseError, recovered locally per spec.md §7). While
// ingesting, Ingest also watches for either idempotence marker so Run can
// short-circuit.
func (e *Engine) Ingest(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			continue
		}
		if len(fields[1]) != 1 {
			continue
		}
		name := fields[2]
		if len(name) == 0 || len(name) > symtab.MaxNameLength {
			continue
		}

		e.store.Append(name, addr, fields[1][0])

		if strings.Contains(name, markerAt) || strings.Contains(name, markerAlias) {
			e.alreadyProcessed = true
		}
	}
	return sc.Err()
}

// Run executes the remainder of the pipeline (sort, classify, synthesize,
// insert, re-sort) unless ingest already detected a processed listing, and
// returns the final sequence; it writes nothing itself (the caller owns
// serialization, e.g. via emit.Write). A short-circuited run returns the
// records in input order.
func (e *Engine) Run() ([]symtab.Record, error) {
	if e.alreadyProcessed {
		slog.Debug("input already carries alias markers, short-circuiting")
		return e.store.Iterate(), nil
	}

	e.store.Sort(symtab.ByName)

	type candidate struct {
		name    string
		address uint64
		typ     byte
	}
	var candidates []candidate
	seq := e.store.Iterate()
	for _, r := range seq {
		if e.store.Multiplicity(r.Name) > 1 {
			candidates = append(candidates, candidate{r.Name, r.Address, r.Type})
		}
	}

	if len(candidates) > 0 {
		e.store.BuildAlphabetIndex()
	}

	total := len(candidates)
	for i, c := range candidates {
		if e.opts.Progress != nil {
			e.opts.Progress(i+1, total)
		}

		if e.classifier.Vetoed(c.name) {
			continue
		}
		if !classify.AliasableType(c.typ, e.opts.AliasData) {
			continue
		}

		alias := e.synthesize(c.name, c.address)
		if !e.store.InsertAfter(c.address, alias, c.address, c.typ) {
			e.insertMiss = &InsertMissError{Name: c.name, Address: c.address}
			return nil, e.insertMiss
		}
		slog.Debug("aliased symbol", "original", c.name, "alias", alias, "address", c.address)
	}

	e.store.Sort(symtab.ByAddress)
	return e.store.Iterate(), nil
}

// synthesize produces an alias name for (name, address): a file-based
// suffix via the addr2line bridge when available and resolvable, else the
// configured serial fallback form. The result is always sanitized per
// spec.md §4.3.
func (e *Engine) synthesize(name string, address uint64) string {
	if e.bridge != nil {
		if path, ok := e.bridge.Query(address); ok {
			if rel, ok := addr2line.RemovePrefix(e.bridge.Root(), path); ok {
				return classify.Sanitize(name + "@" + rel)
			}
		}
	}

	serial := e.serial
	e.serial++

	var alias string
	switch e.opts.SuffixForm {
	case version.FormAt:
		alias = fmt.Sprintf("%s@%d", name, serial)
	case version.FormLegacy:
		alias = fmt.Sprintf("%s__%d", name, serial)
	default:
		alias = fmt.Sprintf("%s__alias__%d", name, serial)
	}
	return classify.Sanitize(alias)
}

// Teardown releases the underlying store. The addr2line bridge, if any, is
// owned by the caller and must be closed independently.
func (e *Engine) Teardown() {
	e.store.Teardown()
}
