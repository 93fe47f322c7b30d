package session

import (
	"encoding/json"
	"sort"

	"github.com/dshills/prguard/internal/safety"
)

// Verdict is the aggregate result of a run.
type Verdict struct {
	SessionID  string                   `json:"session_id"`
	Flagged    bool                     `json:"flagged"`
	Skipped    bool                     `json:"skipped,omitempty"`
	Policies   map[string]safety.Policy `json:"policies"`
	BatchCount int                      `json:"batch_count"`
	Responses  []json.RawMessage        `json:"responses,omitempty"`
	Files      int                      `json:"files"`
	Additions  int                      `json:"additions"`
	Deletions  int                      `json:"deletions"`
}

// PolicyIDs returns the merged policy ids in sorted order.
func (v *Verdict) PolicyIDs() []string {
	ids := make([]string, 0, len(v.Policies))
	for id := range v.Policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FlaggedPolicyIDs returns the ids of flagged policies in sorted order.
func (v *Verdict) FlaggedPolicyIDs() []string {
	var ids []string
	for _, id := range v.PolicyIDs() {
		if v.Policies[id].Flagged {
			ids = append(ids, id)
		}
	}
	return ids
}

// MergePolicies folds src into dst. A policy not yet in dst is added; a
// flagged entry replaces an unflagged one; a flagged entry in dst is never
// replaced. The resulting flagged status of every id is the OR over all
// merged maps, whatever the merge order.
func MergePolicies(dst, src map[string]safety.Policy) {
	for id, p := range src {
		cur, ok := dst[id]
		if !ok || (p.Flagged && !cur.Flagged) {
			dst[id] = p
		}
	}
}
