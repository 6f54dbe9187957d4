package throughput

import (
	"fmt"
	"io"
	"strings"
)

const userAgent = "speedtest-go/1.0"

// downloadPath builds the random.php-style download endpoint path for a
// given payload size in bytes, matching the convention the catalog's
// servers expose (spec §4.5).
func downloadPath(sizeBytes int) string {
	sizeKB := sizeBytes / 1000
	if sizeKB <= 0 {
		sizeKB = 1
	}
	return fmt.Sprintf("/random%dx%d.jpg", sizeKB, sizeKB)
}

// isTLS reports whether a server's advertised URL uses https.
func isTLS(serverURL string) bool {
	return strings.HasPrefix(serverURL, "https://")
}

// drain reads r to exhaustion so its connection can be reused, discarding
// the content.
func drain(r io.Reader) {
	io.Copy(io.Discard, r)
}
