package throughput

// uploadBody builds an upload payload of exactly size bytes: a "content1="
// key prefix followed by printable ASCII filler (spec §4.5, §9 — printable
// filler avoids accidental compression at intermediate proxies that random
// bytes would dodge but plain zero bytes would invite).
func uploadBody(size int) []byte {
	const prefix = "content1="
	body := make([]byte, size)
	n := copy(body, prefix)
	for i := n; i < size; i++ {
		body[i] = 'a' + byte(i%26)
	}
	return body
}
