// Package tick provides the monotonic tick counters the controller
// measures its timeouts with.
package tick

// Source provides counters at two granularities. Differences are
// computed in the native width of the counter, so a saved timestamp
// is only meaningful for less than one wrap (256 short ticks,
// 65536 seconds).
type Source interface {
	// NowShort returns the sub-second tick counter.
	NowShort() uint8
	// ElapsedShort returns short ticks elapsed since a saved value.
	ElapsedShort(since uint8) uint8
	// NowSeconds returns the whole-second counter.
	NowSeconds() uint16
	// ElapsedSeconds returns seconds elapsed since a saved value.
	ElapsedSeconds(since uint16) uint16
}

// NowSeconds8 is the 8-bit truncation of the seconds counter.
func NowSeconds8(src Source) uint8 {
	return uint8(src.NowSeconds())
}

// ElapsedSeconds8 returns seconds elapsed since an 8-bit timestamp
// taken with NowSeconds8. It wraps after 256 seconds.
func ElapsedSeconds8(src Source, since uint8) uint8 {
	return uint8(src.NowSeconds()) - since
}
