package playback

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

func TestRTPPlayer_SendsSequentialPackets(t *testing.T) {
	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	player := NewRTPPlayer(listener.LocalAddr().String(), audioconv.Playback, nil)

	raw := make([]byte, 3840*2)
	done := make(chan error, 1)
	go func() {
		done <- player.Play(context.Background(), bytes.NewReader(raw))
	}()

	var got []*rtp.Packet
	buf := make([]byte, 1500)
	_ = listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(got) < 2 {
		n, _, err := listener.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, pkt)
	}

	if err := <-done; err != nil {
		t.Fatalf("Play error: %v", err)
	}

	if got[0].PayloadType != DefaultRTPPayloadType {
		t.Errorf("expected payload type %d, got %d", DefaultRTPPayloadType, got[0].PayloadType)
	}
	if got[1].SequenceNumber != got[0].SequenceNumber+1 {
		t.Errorf("sequence not incrementing: %d -> %d", got[0].SequenceNumber, got[1].SequenceNumber)
	}
	if got[1].Timestamp-got[0].Timestamp != 960 {
		t.Errorf("expected timestamp step 960, got %d", got[1].Timestamp-got[0].Timestamp)
	}
	if got[0].SSRC != got[1].SSRC {
		t.Error("SSRC changed mid-stream")
	}
}
