package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"parapet/internal/risk/models"
	"parapet/internal/risk/store"
	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

// CreateRiskRequest is the HTTP request body for POST /risks.
type CreateRiskRequest struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	ThreatDescription string          `json:"threat_description"`
	Category          string          `json:"risk_category"`
	Nature            string          `json:"risk_nature"`
	Department        string          `json:"department"`
	OwnerID           string          `json:"owner_user_id"`
	Scores            models.ScoreSet `json:"scores"`
	Treatment         string          `json:"treatment"`
	Status            string          `json:"status"`

	// Parsed values (populated by Validate)
	parsedNature    models.RiskNature
	parsedTreatment models.Treatment
	parsedStatus    models.RiskStatus
	parsedOwnerID   *id.UserID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRiskRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}

	nature, err := models.ParseRiskNature(r.Nature)
	if err != nil {
		return err
	}
	r.parsedNature = nature

	treatment, err := models.ParseTreatment(r.Treatment)
	if err != nil {
		return err
	}
	r.parsedTreatment = treatment

	// Status is optional; the service defaults an empty one to DRAFT and
	// rejects initial states outside DRAFT/PROPOSED itself.
	if r.Status != "" {
		status, err := models.ParseRiskStatus(r.Status)
		if err != nil {
			return err
		}
		r.parsedStatus = status
	}

	if r.OwnerID != "" {
		ownerID, err := id.ParseUserID(r.OwnerID)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "invalid owner_user_id")
		}
		r.parsedOwnerID = &ownerID
	}

	return nil
}

// Details assembles the validated descriptive fields.
func (r *CreateRiskRequest) Details() models.RiskDetails {
	return models.RiskDetails{
		Title:             r.Title,
		Description:       r.Description,
		ThreatDescription: r.ThreatDescription,
		Category:          r.Category,
		Nature:            r.parsedNature,
		Department:        r.Department,
		OwnerID:           r.parsedOwnerID,
	}
}

// ParsedTreatment returns the validated treatment category.
func (r *CreateRiskRequest) ParsedTreatment() models.Treatment {
	return r.parsedTreatment
}

// ParsedStatus returns the validated initial status, empty when the body
// omitted one.
func (r *CreateRiskRequest) ParsedStatus() models.RiskStatus {
	return r.parsedStatus
}

// ApproveRequest is the optional HTTP request body for POST /risks/{riskID}/approve.
type ApproveRequest struct {
	RevisedScores *models.ScoreSet `json:"revised_scores"`
}

// RejectRequest is the HTTP request body for POST /risks/{riskID}/reject.
// It carries no Validate: the reason check belongs to the service, after the
// state check.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// MergeRequest is the HTTP request body for POST /risks/{riskID}/merge.
type MergeRequest struct {
	TargetRiskID string `json:"target_risk_id"`

	parsedTargetID id.RiskID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *MergeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.TargetRiskID = strings.TrimSpace(r.TargetRiskID)
	if r.TargetRiskID == "" {
		return dErrors.New(dErrors.CodeValidation, "target_risk_id is required")
	}

	targetID, err := id.ParseRiskID(r.TargetRiskID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid target_risk_id")
	}
	r.parsedTargetID = targetID

	return nil
}

// ParsedTargetID returns the validated merge target.
func (r *MergeRequest) ParsedTargetID() id.RiskID {
	return r.parsedTargetID
}

// MitigationRequest is the HTTP request body for PUT /risks/{riskID}/mitigation.
// All four factors are independently optional; out-of-range values are
// clamped downstream, so there is nothing to validate at the edge.
type MitigationRequest struct {
	Confidentiality *int `json:"confidentiality"`
	Integrity       *int `json:"integrity"`
	Availability    *int `json:"availability"`
	Likelihood      *int `json:"likelihood"`
}

// ReviewRequest is the optional HTTP request body for POST /risks/{riskID}/review.
type ReviewRequest struct {
	NextReviewDate *time.Time `json:"next_review_date"`
}

// parseListQuery extracts filter and paging parameters for GET /risks.
func parseListQuery(r *http.Request) (store.Filter, int, int, error) {
	var filter store.Filter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status, err := models.ParseRiskStatus(v)
		if err != nil {
			return store.Filter{}, 0, 0, err
		}
		filter.Status = &status
	}

	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			return store.Filter{}, 0, 0, dErrors.New(dErrors.CodeInvalidInput, "archived must be true or false")
		}
		filter.Archived = &archived
	}

	if v := q.Get("due_before"); v != "" {
		dueBefore, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.Filter{}, 0, 0, dErrors.New(dErrors.CodeInvalidInput, "due_before must be an RFC 3339 timestamp")
		}
		filter.DueBefore = &dueBefore
	}

	page, err := queryInt(q.Get("page"))
	if err != nil {
		return store.Filter{}, 0, 0, dErrors.New(dErrors.CodeInvalidInput, "page must be an integer")
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		return store.Filter{}, 0, 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer")
	}

	return filter, page, limit, nil
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
