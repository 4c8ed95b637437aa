package beacon

// SequenceState numbers consecutive records that share a timestamp. It is owned by a
// single Output and must not be shared.
type SequenceState struct {
	lastTimestamp int64
	set           bool
	counter       int
}

// Next returns the sequence value for a record at timestampNs: the counter is incremented
// when the timestamp repeats the previous one and reset to zero otherwise.
func (s *SequenceState) Next(timestampNs int64) int {
	if s.set && s.lastTimestamp == timestampNs {
		s.counter++
	} else {
		s.counter = 0
	}
	s.lastTimestamp = timestampNs
	s.set = true
	return s.counter
}
