package transcript

import "iter"

// SplitByMaxDuration cuts the segment into sub-segments no longer than max
// seconds. Cuts only happen between words, and never right before a
// punctuation token: punctuation stays with the words it closes, even when it
// pushes the sub-segment over max.
//
// The returned sequence is lazy and can be ranged over more than once.
func (s Segment) SplitByMaxDuration(max float64) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		if s.Duration() <= max || len(s.Words) == 0 {
			yield(s.clone())
			return
		}

		current := Segment{
			SpeakerID: s.SpeakerID,
			Language:  s.Language,
			StartTime: s.StartTime,
		}
		for _, w := range s.Words {
			exceeded := len(current.Words) > 0 && w.EndTime()-current.StartTime > max
			if exceeded && !IsPunctuation(w.Text) {
				current.EndTime = lastWordEnd(current)
				if !yield(current) {
					return
				}
				current = Segment{
					SpeakerID: s.SpeakerID,
					Language:  s.Language,
					StartTime: w.StartTime,
				}
			}
			current.Words = append(current.Words, w)
		}
		current.EndTime = s.EndTime
		if current.EndTime-current.StartTime > max {
			// trailing silence would stretch the last sub-segment
			current.EndTime = lastWordEnd(current)
		}
		yield(current)
	}
}

func lastWordEnd(s Segment) float64 {
	end := s.StartTime
	for _, w := range s.Words {
		if e := w.EndTime(); e > end {
			end = e
		}
	}
	return end
}
