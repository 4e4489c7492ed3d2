package core

// Frame is a raw payload for one participant: JSON for text frames, PCM for binary frames.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	TrySendBinary(Frame) error
	Close()
}
