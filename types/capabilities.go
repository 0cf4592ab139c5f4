package types

// Clock is the monotonic millisecond time source that drives the harness
// loop and the heartbeat. SleepMs yields for the cooperative loop's idle
// step; fakes advance their counter instead of blocking.
type Clock interface {
	NowMs() int64
	SleepMs(ms int64)
}
