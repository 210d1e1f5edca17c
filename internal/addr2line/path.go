package addr2line

import "strings"

// Normalize resolves "." and ".." components in path lexically, the way
// spec.md §4.4.1 requires: no filesystem access, just a token-by-token
// rebuild of the path. path is assumed to already be absolute (addr2line
// always returns absolute or "??:0").
func Normalize(path string) string {
	tokens := strings.Split(path, "/")
	var out []string
	for _, tok := range tokens {
		switch tok {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, tok)
		}
	}
	return "/" + strings.Join(out, "/")
}

// RemovePrefix returns the suffix of path following root iff path starts
// exactly with root (byte-for-byte, same-length prefix), per spec.md
// §4.4.2, with a single leading '/' removed from that suffix. The ok
// result is false when path does not start with root.
func RemovePrefix(root, path string) (rel string, ok bool) {
	if !strings.HasPrefix(path, root) {
		return "", false
	}
	rel = path[len(root):]
	rel = strings.TrimPrefix(rel, "/")
	return rel, true
}
