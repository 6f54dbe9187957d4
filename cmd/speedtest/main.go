// Command speedtest measures latency, jitter, packet loss, and download/
// upload throughput against the nearest reachable server, printing the
// result on stdout as a readable summary, or as KEY=VALUE pairs with
// --output text.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
