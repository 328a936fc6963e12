package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/beneficiaries"
	"github.com/meridian-aid/meridian-aid/internal/deliveries"
	"github.com/meridian-aid/meridian-aid/internal/forms"
	"github.com/meridian-aid/meridian-aid/internal/projects"
)

// Changeset is the scoped payload an offline device pulls. Every slice
// honours the caller's entity filter; beneficiary PII ships as
// ciphertext envelopes unless the caller is admin tier.
type Changeset struct {
	GeneratedAt   time.Time               `json:"generated_at"`
	Since         *time.Time              `json:"since,omitempty"`
	Projects      []projects.Project    `json:"projects"`
	Subprojects   []projects.Subproject `json:"subprojects"`
	Activities    []projects.Activity   `json:"activities"`
	Templates     []forms.Template      `json:"templates"`
	Beneficiaries []beneficiaries.View  `json:"beneficiaries"`
	Deliveries    []deliveries.Delivery `json:"deliveries"`
}

// PullRequest narrows a pull to changes after Since, optionally to one
// project.
type PullRequest struct {
	Since     *time.Time
	ProjectID *uuid.UUID
}
