package models

import "time"

// BlockRule is a URL substring pattern plus its activation flag. Pattern is the identity.
type BlockRule struct {
	Pattern     string    `json:"pattern" example:"ads.example.com"`
	Active      bool      `json:"active" example:"true"`
	Description string    `json:"description" example:"banner ads"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BlockRuleInput is the request payload for creating or editing a rule.
type BlockRuleInput struct {
	Pattern     string `json:"pattern" example:"ads.example.com"`
	Active      *bool  `json:"active,omitempty"`
	Description string `json:"description" example:"banner ads"`
}

// BlockRulePatterns selects rules by pattern for bulk operations.
type BlockRulePatterns struct {
	Patterns []string `json:"patterns"`
}
