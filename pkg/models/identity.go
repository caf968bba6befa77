package models

import "encoding/json"

// Policy type constants for PolicyRecord.Type.
const (
	PolicyTypeManaged = "managed"
	PolicyTypeInline  = "inline"
)

// RoleRecord is one collected IAM role with its attached and inline policies.
type RoleRecord struct {
	ARN       string         `json:"arn"`
	Name      string         `json:"name"`
	AccountID string         `json:"account_id"`
	Policies  []PolicyRecord `json:"policies"`
}

// PolicyRecord is one policy referenced by a role. Type distinguishes managed
// from inline policies; both carry the same fields. Document is the raw policy
// document JSON and is stored on the graph node as an opaque snapshot.
type PolicyRecord struct {
	ARN      string          `json:"arn"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Document json.RawMessage `json:"document"`
}

// PolicyDocument is the parsed shape of an IAM policy document. Only the
// fields needed for action extraction are modeled.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is one permission statement within a policy document.
type Statement struct {
	Effect   string     `json:"Effect"`
	Action   StringList `json:"Action"`
	Resource StringList `json:"Resource,omitempty"`
}

// EffectAllow is the only statement effect consulted for action extraction.
const EffectAllow = "Allow"

// StringList unmarshals a JSON field that may be either a single string or an
// array of strings, normalizing to a slice. IAM documents use both forms.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

func (s StringList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}
