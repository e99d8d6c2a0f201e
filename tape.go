package anymaml

import (
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
)

// convertTape re-expresses a tape's batches with a
// different creator.
// This makes recorded episodes readable under forward
// auto-diff creators, whose vectors carry derivatives.
func convertTape(t lazyseq.Tape, c anyvec.Creator) lazyseq.Tape {
	if t.Creator() == c {
		return t
	}
	return &convertedTape{Tape: t, creator: c}
}

type convertedTape struct {
	Tape    lazyseq.Tape
	creator anyvec.Creator
}

func (c *convertedTape) Creator() anyvec.Creator {
	return c.creator
}

func (c *convertedTape) ReadTape(start, end int) <-chan *anyseq.Batch {
	res := make(chan *anyseq.Batch, 1)
	go func() {
		oldCreator := c.Tape.Creator()
		for in := range c.Tape.ReadTape(start, end) {
			res <- &anyseq.Batch{
				Present: in.Present,
				Packed:  anyvec.Make(c.creator, oldCreator.Float64Slice(in.Packed.Data())),
			}
		}
		close(res)
	}()
	return res
}
