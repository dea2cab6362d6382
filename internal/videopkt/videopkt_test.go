package videopkt

import (
	"bytes"
	"testing"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/cryptoutil"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/protocol"
	"github.com/moonshine-stream/moonshine/internal/videnc"
)

func newTestPacketizer(t *testing.T, shardSize, fecPercent int) (*Packetizer, *cryptoutil.GCMContext) {
	t.Helper()
	gcm, err := cryptoutil.NewGCMContext([16]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewGCMContext: %v", err)
	}
	report, _ := moonerr.NewReporter(zap.NewNop(), "", "test")
	return New(zap.NewNop(), gcm, [8]byte{9, 9, 9, 9, 9, 9, 9, 9}, shardSize, fecPercent, report), gcm
}

func TestPacketizeShardCountAndFlags(t *testing.T) {
	p, _ := newTestPacketizer(t, 100, 20)
	data := bytes.Repeat([]byte{0x42}, 250) // 3 data shards at size 100
	shards, err := p.Packetize(videnc.AccessUnit{FrameIndex: 7, Data: data, IsIDR: true})
	if err != nil {
		t.Fatalf("Packetize: %v", err)
	}

	// 3 data shards, ceil(3*20/100)=1 parity shard
	if len(shards) != 4 {
		t.Fatalf("expected 4 shards, got %d", len(shards))
	}

	hdr, ok := protocol.UnmarshalVideoShardHeader(shards[0].Wire)
	if !ok {
		t.Fatal("failed to unmarshal first shard header")
	}
	if hdr.Flags&protocol.VideoFlagSOF == 0 {
		t.Error("first shard should carry SOF")
	}
	if hdr.Flags&protocol.VideoFlagIDR == 0 {
		t.Error("IDR frame shards should carry IDR flag")
	}

	eofHdr, ok := protocol.UnmarshalVideoShardHeader(shards[2].Wire)
	if !ok {
		t.Fatal("failed to unmarshal third shard header")
	}
	if eofHdr.Flags&protocol.VideoFlagEOF == 0 {
		t.Error("last data shard should carry EOF")
	}
}

func TestPacketizeShardsDecryptToOriginalData(t *testing.T) {
	p, gcm := newTestPacketizer(t, 16, 50)
	data := []byte("0123456789abcdef0123456789ABCDEF") // exactly 2 shards of 16

	shards, err := p.Packetize(videnc.AccessUnit{FrameIndex: 1, Data: data})
	if err != nil {
		t.Fatalf("Packetize: %v", err)
	}

	for i, s := range shards[:2] {
		hdr, ok := protocol.UnmarshalVideoShardHeader(s.Wire)
		if !ok {
			t.Fatalf("unmarshal shard %d", i)
		}
		body := s.Wire[protocol.VideoHeaderSize:]
		tagStart := len(body) - protocol.AESGCMTagSize
		nonce := protocol.VideoNonce([8]byte{9, 9, 9, 9, 9, 9, 9, 9}, hdr.FrameIndex, hdr.ShardIndex)
		plain, err := gcm.Open(nonce, body[:tagStart], body[tagStart:])
		if err != nil {
			t.Fatalf("Open shard %d: %v", i, err)
		}
		want := data[i*16 : (i+1)*16]
		if !bytes.Equal(plain, want) {
			t.Errorf("shard %d decrypted mismatch: got %q want %q", i, plain, want)
		}
	}
}

func TestPacketizeEmptyAccessUnit(t *testing.T) {
	p, _ := newTestPacketizer(t, 100, 20)
	shards, err := p.Packetize(videnc.AccessUnit{FrameIndex: 0, Data: nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shards != nil {
		t.Errorf("expected nil shards for empty access unit, got %d", len(shards))
	}
}
