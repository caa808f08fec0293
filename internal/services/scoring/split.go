package scoring

// Split is one purged walk-forward fold over row positions [Start, End).
type Split struct {
	TrainStart, TrainEnd int
	TestStart, TestEnd   int
}

// TrainIdx lists the training positions.
func (s Split) TrainIdx() []int { return span(s.TrainStart, s.TrainEnd) }

// TestIdx lists the test positions.
func (s Split) TestIdx() []int { return span(s.TestStart, s.TestEnd) }

func span(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// PurgedSplits partitions n samples into consecutive test blocks of width
// test, each paired with the train rows immediately before it and separated
// from it by purge rows. Every training index is below TestStart - purge.
func PurgedSplits(n, train, test, purge int) []Split {
	if n <= 0 || train <= 0 || test <= 0 || purge < 0 {
		return nil
	}
	var out []Split
	for i := train + purge; i < n-test; i += test {
		out = append(out, Split{
			TrainStart: i - train - purge,
			TrainEnd:   i - purge,
			TestStart:  i,
			TestEnd:    i + test,
		})
	}
	return out
}
