package usbserial

import (
	"context"
	"sync"
)

// transferBuffer is the byte arena shared by a device and its pumps.
//
// The read scratch region is handed to the connection by QueueIn and comes
// back with the matching completion; only the read pump touches it in
// between, so it needs no lock. The write side is a buffered channel used
// as a slot: producers serialize on wmu, the write pump receives.
type transferBuffer struct {
	scratch  []byte
	received int

	wmu     sync.Mutex
	pending chan []byte
	dropped func() // called when a pending payload is superseded
}

func newTransferBuffer(readSize, writeDepth int) *transferBuffer {
	if writeDepth < 1 {
		writeDepth = 1
	}
	return &transferBuffer{
		scratch: make([]byte, readSize),
		pending: make(chan []byte, writeDepth),
	}
}

// takeReadScratch returns the whole fixed-capacity read region.
func (b *transferBuffer) takeReadScratch() ([]byte, int) {
	return b.scratch, len(b.scratch)
}

// markReceived records how many bytes the last completed transfer wrote.
func (b *transferBuffer) markReceived(n int) {
	b.received = max(0, min(n, len(b.scratch)))
}

// snapshotReceived copies out the bytes of the last completed transfer.
func (b *transferBuffer) snapshotReceived() []byte {
	out := make([]byte, b.received)
	copy(out, b.scratch[:b.received])
	return out
}

// receivedView returns the filled part of the scratch region without copying.
// Only valid until clearReadScratch.
func (b *transferBuffer) receivedView() []byte {
	return b.scratch[:b.received]
}

// clearReadScratch resets the region before it is re-armed.
func (b *transferBuffer) clearReadScratch() {
	clear(b.scratch[:b.received])
	b.received = 0
}

// enqueueWrite stores a private copy of data for the write pump. It never
// blocks: when the slot (or queue) is full the oldest payload is dropped.
func (b *transferBuffer) enqueueWrite(data []byte) {
	p := make([]byte, len(data))
	copy(p, data)

	b.wmu.Lock()
	defer b.wmu.Unlock()
	for {
		select {
		case b.pending <- p:
			return
		default:
		}
		select {
		case <-b.pending:
			if b.dropped != nil {
				b.dropped()
			}
		default:
		}
	}
}

// dequeueWrite blocks until a payload is available or ctx is done.
func (b *transferBuffer) dequeueWrite(ctx context.Context) ([]byte, error) {
	select {
	case p := <-b.pending:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resetWrite discards every pending payload.
func (b *transferBuffer) resetWrite() {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	for {
		select {
		case <-b.pending:
		default:
			return
		}
	}
}

// pendingWrites reports how many payloads wait for the write pump.
func (b *transferBuffer) pendingWrites() int {
	return len(b.pending)
}
