package qualityprobe

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/abhayap/speedtest-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveQuality accepts one connection, performs the HELLO handshake, then
// replies PONG to every PING except those listed in dropSeqs.
func serveQuality(t *testing.T, dropSeqs map[int]bool) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		var version int
		fmt.Sscanf(line, "HELLO %d", &version)
		fmt.Fprintf(conn, "HELLO %d\n", version)

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			var seq int
			if _, err := fmt.Sscanf(line, "PING %d", &seq); err != nil {
				continue
			}
			if dropSeqs[seq] {
				continue // simulate a lost probe: no reply
			}
			fmt.Fprintf(conn, "PONG %d\n", seq)
		}
	}()

	return ln.Addr().String()
}

func TestPacketLossAllReceived(t *testing.T) {
	addr := serveQuality(t, nil)
	server := model.ServerRecord{QualityEndpoint: addr}

	lossPc, err := PacketLoss(context.Background(), server, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, lossPc)
}

func TestPacketLossRequiresQualityEndpoint(t *testing.T) {
	server := model.ServerRecord{}
	_, err := PacketLoss(context.Background(), server, 5)
	assert.Error(t, err)
}

func TestPacketLossUnreachableServer(t *testing.T) {
	server := model.ServerRecord{QualityEndpoint: "127.0.0.1:1"}
	_, err := PacketLoss(context.Background(), server, 5)
	assert.Error(t, err)
}
