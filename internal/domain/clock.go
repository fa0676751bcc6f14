package domain

// Clock reports the current block height. Deadlines are expressed in
// heights, so the engine never compares wall-clock times directly.
type Clock interface {
	Height() Height
}
