package batch

import (
	"github.com/dshills/prguard/internal/apperr"
	"github.com/dshills/prguard/internal/tokenizer"
)

// DefaultSafetyMargin is reserved on top of the measured prompt overhead. It
// covers block separators and tokenizer merges at section joins.
const DefaultSafetyMargin = 200

// Planner formats and packs change records under a per-request unit budget.
type Planner struct {
	Tokenizer tokenizer.Tokenizer
	// MaxUnits is the per-request ceiling imposed by the safety service.
	MaxUnits int
	// SafetyMargin is added to the fixed overhead. Zero means no margin.
	SafetyMargin int
}

// Plan is the result of planning one run.
type Plan struct {
	Overhead  int     `json:"overhead"`
	Available int     `json:"available"`
	Batches   []Batch `json:"batches"`
}

// Overhead returns the units consumed by everything in a request except the
// file blocks: preamble, commit section, files header and the safety margin.
func (p Planner) Overhead(commitMsgs string) int {
	return p.Tokenizer.Count(preamble) +
		p.Tokenizer.Count(CommitSection(commitMsgs)) +
		p.Tokenizer.Count(filesHeader) +
		p.SafetyMargin
}

// PlanRecords formats every record against the full per-batch allowance and
// packs the resulting blocks in order.
//
// Every record is offered the same candidate budget, the batch-sized
// available, not the capacity left in the batch it lands in.
func (p Planner) PlanRecords(records []ChangeRecord, commitMsgs string) (Plan, error) {
	if p.MaxUnits <= 0 {
		return Plan{}, apperr.Configf("plan", "token budget must be positive, got %d", p.MaxUnits)
	}
	overhead := p.Overhead(commitMsgs)
	available := p.MaxUnits - overhead
	if available <= 0 {
		return Plan{}, apperr.Configf("plan",
			"token budget %d leaves no room for content after %d units of overhead", p.MaxUnits, overhead)
	}

	f := Formatter{Tokenizer: p.Tokenizer}
	blocks := make([]Block, len(records))
	for i, rec := range records {
		blocks[i] = f.Format(rec, available)
	}

	return Plan{
		Overhead:  overhead,
		Available: available,
		Batches:   Pack(blocks, available),
	}, nil
}

// Pack groups blocks into batches with one greedy pass in input order.
//
// A block that fits in the running batch (running + units <= available) is
// appended. A block that does not fit starts a new batch. A block larger than
// available on its own closes the running batch and is emitted as a singleton,
// so no other block is ever packed with it.
func Pack(blocks []Block, available int) []Batch {
	var batches []Batch
	var current []Block
	running := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, Batch{
			Index:  len(batches),
			Blocks: current,
			Units:  running,
		})
		current = nil
		running = 0
	}

	for _, blk := range blocks {
		switch {
		case blk.Units > available:
			flush()
			current = []Block{blk}
			running = blk.Units
			flush()
		case running+blk.Units <= available:
			current = append(current, blk)
			running += blk.Units
		default:
			flush()
			current = []Block{blk}
			running = blk.Units
		}
	}
	flush()

	return batches
}
