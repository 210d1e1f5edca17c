package addr2line

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/a/b/c", "/a/b/c"},
		{"/a/./b", "/a/b"},
		{"/a/b/../c", "/a/c"},
		{"/a/../../b", "/b"},
		{"/a//b", "/a/b"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRemovePrefix(t *testing.T) {
	rel, ok := RemovePrefix("/home/build/kernel", "/home/build/kernel/drivers/foo.c")
	if !ok {
		t.Fatalf("RemovePrefix should succeed")
	}
	if rel != "drivers/foo.c" {
		t.Fatalf("rel = %q, want drivers/foo.c", rel)
	}

	if _, ok := RemovePrefix("/home/build/kernel", "/other/drivers/foo.c"); ok {
		t.Fatalf("RemovePrefix should fail on mismatched prefix")
	}
}
