package pipeline

import (
	"sync"

	"github.com/olegiv/burplog-go/internal/filter"
	"github.com/olegiv/burplog-go/internal/traffic"
)

type slot struct {
	entry traffic.Entry
	keep  bool
}

// transform normalizes and filters records. With more than one worker the
// records are spread over a fixed pool; each result lands in the slot of
// its source index, so the output order matches the sequential path.
func (p *Pipeline) transform(records []traffic.RawRecord, f *filter.Filter) []traffic.Entry {
	workers := p.workers
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 2 {
		entries := make([]traffic.Entry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, p.normalizer.Normalize(rec))
		}
		return f.Apply(entries)
	}

	slots := make([]slot, len(records))
	idxCh := make(chan int, len(records))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxCh {
				e := p.normalizer.Normalize(records[idx])
				slots[idx] = slot{entry: e, keep: f.Include(e)}
			}
		}()
	}

	for i := range records {
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	out := make([]traffic.Entry, 0, len(records))
	for _, s := range slots {
		if s.keep {
			out = append(out, s.entry)
		}
	}
	return out
}
