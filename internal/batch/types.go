package batch

// Status is the change status of a file in a pull request.
type Status string

const (
	StatusAdded    Status = "added"
	StatusModified Status = "modified"
	StatusRemoved  Status = "removed"
	StatusRenamed  Status = "renamed"
)

// ParseStatus maps a VCS status string onto a Status. Statuses without a
// direct equivalent fold into the closest one.
func ParseStatus(s string) Status {
	switch s {
	case "added", "A", "copied", "C":
		return StatusAdded
	case "removed", "deleted", "D":
		return StatusRemoved
	case "renamed", "R":
		return StatusRenamed
	default:
		return StatusModified
	}
}

// ChangeRecord is one changed file as supplied by the VCS collaborator.
// An empty Diff means no diff is available (binary or oversized file); an
// empty Content means the full file body was not fetched.
type ChangeRecord struct {
	Path      string `json:"path"`
	Status    Status `json:"status"`
	Diff      string `json:"diff,omitempty"`
	Content   string `json:"content,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// HasDiff reports whether a diff is available for the record.
func (r ChangeRecord) HasDiff() bool { return r.Diff != "" }

// HasContent reports whether the full file content is available.
func (r ChangeRecord) HasContent() bool { return r.Content != "" }

// Block is the rendered text for one ChangeRecord. Units is the tokenizer's
// count of Text.
type Block struct {
	Path  string `json:"path"`
	Text  string `json:"-"`
	Units int    `json:"units"`
}

// Batch is an ordered group of blocks sent to the safety service in a single
// request.
type Batch struct {
	Index  int     `json:"index"`
	Blocks []Block `json:"blocks"`
	Units  int     `json:"units"`
}

// Paths returns the paths of the batch's blocks in order.
func (b Batch) Paths() []string {
	paths := make([]string, len(b.Blocks))
	for i, blk := range b.Blocks {
		paths[i] = blk.Path
	}
	return paths
}

// Oversized reports whether the batch exceeds available, which only happens
// for a singleton whose one block is already larger than the budget.
func (b Batch) Oversized(available int) bool {
	return b.Units > available
}
