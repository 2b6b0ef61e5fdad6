package cc

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// toolChecksum identifies the compiler in the depdb. A configured
// "cc.checksum" wins; otherwise the tool's path, size and mtime are
// hashed, which is cheap and catches upgrades in place.
func toolChecksum(tool string) string {
	h := xxhash.New()
	_, _ = h.WriteString(tool)
	_, _ = h.Write([]byte{0})

	if fi, err := os.Stat(tool); err == nil {
		_, _ = h.WriteString(strconv.FormatInt(fi.Size(), 10))
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(strconv.FormatInt(fi.ModTime().UnixNano(), 10))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// optionsChecksum hashes the options exactly as they will be passed to
// the compiler: the order may be significant.
func optionsChecksum(opts []string) string {
	h := xxhash.New()
	for _, o := range opts {
		_, _ = h.WriteString(o)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
