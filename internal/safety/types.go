package safety

import (
	"encoding/json"
	"fmt"
)

// RoleUser is the role of the message carrying the pull-request content.
const RoleUser = "user"

// Message is one chat message in a Request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body of one safety check.
type Request struct {
	DeploymentID      string    `json:"deployment_id"`
	InternalSessionID string    `json:"internal_session_id"`
	Messages          []Message `json:"messages"`
}

// Policy is one policy's result. Fields other than name and flagged are kept
// in Detail as returned by the service.
type Policy struct {
	Name    string                     `json:"name"`
	Flagged bool                       `json:"flagged"`
	Detail  map[string]json.RawMessage `json:"detail,omitempty"`
}

// UnmarshalJSON collects unknown fields into Detail.
func (p *Policy) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("policy: expected an object")
	}
	*p = Policy{}
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &p.Name); err != nil {
			return fmt.Errorf("policy name: %w", err)
		}
		delete(fields, "name")
	}
	if raw, ok := fields["flagged"]; ok {
		if err := json.Unmarshal(raw, &p.Flagged); err != nil {
			return fmt.Errorf("policy flagged: %w", err)
		}
		delete(fields, "flagged")
	}
	if len(fields) > 0 {
		p.Detail = fields
	}
	return nil
}

// Response is the service's verdict for one batch.
type Response struct {
	Flagged  bool              `json:"flagged"`
	Policies map[string]Policy `json:"policies"`
	// Raw is the response body as received.
	Raw json.RawMessage `json:"-"`
}

type wireResponse struct {
	Flagged  *bool             `json:"flagged"`
	Policies map[string]Policy `json:"policies"`
}

// ParseResponse decodes a response body. The flagged field is required; a
// missing or null policies object is treated as no policies.
func ParseResponse(body []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return Response{}, fmt.Errorf("decoding response: %w", err)
	}
	if w.Flagged == nil {
		return Response{}, fmt.Errorf("response has no flagged field")
	}
	if w.Policies == nil {
		w.Policies = map[string]Policy{}
	}
	return Response{
		Flagged:  *w.Flagged,
		Policies: w.Policies,
		Raw:      json.RawMessage(body),
	}, nil
}
