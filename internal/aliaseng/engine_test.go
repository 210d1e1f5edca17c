package aliaseng

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/kas-alias/kasalias/internal/addr2line"
	"github.com/kas-alias/kasalias/internal/classify"
	"github.com/kas-alias/kasalias/internal/symtab"
	"github.com/kas-alias/kasalias/internal/version"
)

// fakeAddr2Line writes a shell script standing in for `addr2line -fe`,
// reporting locations under root (the image's directory, as a real
// addr2line would for a file compiled in place) and branching the line
// number on whether the queried address ends in "1a0", so two duplicate
// symbols at different addresses resolve to distinct file:line locations.
func fakeAddr2Line(t *testing.T, root string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("addr2line bridge assumes a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-addr2line.sh")
	body := "#!/bin/sh\n" +
		"while read -r addr; do\n" +
		"  echo device_show\n" +
		"  case \"$addr\" in\n" +
		"    *1a0) echo " + root + "/drivers/foo.c:10 ;;\n" +
		"    *) echo " + root + "/drivers/foo.c:20 ;;\n" +
		"  esac\n" +
		"done\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script
}

func mustClassifier(t *testing.T, aliasDataAll bool) *classify.Classifier {
	t.Helper()
	c, err := classify.New(aliasDataAll)
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	return c
}

func findRecord(t *testing.T, records []symtab.Record, name string) symtab.Record {
	t.Helper()
	for _, r := range records {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("record %q not found in %+v", name, records)
	return symtab.Record{}
}

// TestPureDuplicateSerialFallback covers scenario 1's input without a
// bridge (every alias falls back to the serial form); the file-based path
// is exercised end to end by TestBridgeBackedFileAlias below.
func TestPureDuplicateSerialFallback(t *testing.T) {
	eng := New(mustClassifier(t, false), nil, Options{SuffixForm: version.FormAlias})
	defer eng.Teardown()

	input := "ffffffff000001a0 t device_show\nffffffff000002b0 t device_show\n"
	if err := eng.Ingest(strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	out, err := eng.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4 (2 originals + 2 aliases)", len(out))
	}

	a0 := findRecord(t, out, "device_show__alias__0")
	a1 := findRecord(t, out, "device_show__alias__1")
	if a0.Address != 0xffffffff000001a0 || a0.Type != 't' {
		t.Fatalf("alias 0 address/type wrong: %+v", a0)
	}
	if a1.Address != 0xffffffff000002b0 || a1.Type != 't' {
		t.Fatalf("alias 1 address/type wrong: %+v", a1)
	}

	// address order
	for i := 1; i < len(out); i++ {
		if out[i].Address < out[i-1].Address {
			t.Fatalf("output not address-sorted at index %d: %+v", i, out)
		}
	}
}

func TestFilteredPrefixNoAlias(t *testing.T) {
	eng := New(mustClassifier(t, false), nil, Options{SuffixForm: version.FormAlias})
	defer eng.Teardown()

	input := "ffffffff00000100 t __pfx_x\nffffffff00000200 t __pfx_x\n"
	if err := eng.Ingest(strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	out, err := eng.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (no aliases added)", len(out))
	}
}

func TestDataSymbolFlagOff(t *testing.T) {
	eng := New(mustClassifier(t, false), nil, Options{AliasData: false, SuffixForm: version.FormAlias})
	defer eng.Teardown()

	input := "ffffffff00000100 D cswitch_count\nffffffff00000200 D cswitch_count\n"
	if err := eng.Ingest(strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	out, err := eng.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (data aliasing disabled)", len(out))
	}
}

func TestDataSymbolFlagOn(t *testing.T) {
	eng := New(mustClassifier(t, false), nil, Options{AliasData: true, SuffixForm: version.FormAlias})
	defer eng.Teardown()

	input := "ffffffff00000100 D cswitch_count\nffffffff00000200 D cswitch_count\n"
	if err := eng.Ingest(strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	out, err := eng.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	for _, name := range []string{"cswitch_count__alias__0", "cswitch_count__alias__1"} {
		r := findRecord(t, out, name)
		if r.Type != 'D' {
			t.Errorf("%s type = %c, want D", name, r.Type)
		}
	}
}

// TestBridgeBackedFileAlias drives spec.md §8 scenario 1 end to end
// through a real addr2line.Bridge (backed by a fake addr2line script
// rather than a stub), asserting the literal alias name the spec's worked
// example gives: "device_show@drivers_foo_c_10" for the duplicate at
// address ...1a0, confirming the line number from addr2line's
// "<path>:<line>" response survives into the synthesized alias instead of
// being dropped.
func TestBridgeBackedFileAlias(t *testing.T) {
	imageDir := t.TempDir()
	image := filepath.Join(imageDir, "vmlinux")
	if err := os.WriteFile(image, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	tool := fakeAddr2Line(t, imageDir)

	bridge, err := addr2line.Open(tool, image)
	if err != nil {
		t.Fatalf("addr2line.Open: %v", err)
	}
	defer bridge.Close()

	eng := New(mustClassifier(t, false), bridge, Options{SuffixForm: version.FormAlias})
	defer eng.Teardown()

	input := "ffffffff000001a0 t device_show\nffffffff000002b0 t device_show\n"
	if err := eng.Ingest(strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	out, err := eng.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := findRecord(t, out, "device_show@drivers_foo_c_10")
	if r.Address != 0xffffffff000001a0 || r.Type != 't' {
		t.Fatalf("alias for 0x...1a0 has wrong address/type: %+v", r)
	}
	r2 := findRecord(t, out, "device_show@drivers_foo_c_20")
	if r2.Address != 0xffffffff000002b0 || r2.Type != 't' {
		t.Fatalf("alias for 0x...2b0 has wrong address/type: %+v", r2)
	}
}

func TestIdempotence(t *testing.T) {
	first := New(mustClassifier(t, false), nil, Options{SuffixForm: version.FormAlias})
	defer first.Teardown()

	input := "ffffffff000001a0 t device_show\nffffffff000002b0 t device_show\n"
	if err := first.Ingest(strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	out1, err := first.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sb strings.Builder
	for _, r := range out1 {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}

	second := New(mustClassifier(t, false), nil, Options{SuffixForm: version.FormAlias})
	defer second.Teardown()
	if err := second.Ingest(strings.NewReader(sb.String())); err != nil {
		t.Fatalf("Ingest (second pass): %v", err)
	}
	out2, err := second.Run()
	if err != nil {
		t.Fatalf("Run (second pass): %v", err)
	}

	if len(out1) != len(out2) {
		t.Fatalf("second pass changed record count: %d vs %d", len(out1), len(out2))
	}
}
