package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"parapet/internal/risk/models"
	"parapet/internal/risk/scoring"
	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

type RiskSuite struct {
	suite.Suite
	now          time.Time
	validDetails models.RiskDetails
	validScores  models.ScoreSet
}

func TestRiskSuite(t *testing.T) {
	suite.Run(t, new(RiskSuite))
}

func (s *RiskSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.validDetails = models.RiskDetails{
		Title:             "Unpatched edge servers",
		Description:       "Internet-facing hosts miss critical patches",
		ThreatDescription: "Remote code execution via known CVE",
		Category:          "technical",
		Nature:            models.NatureStatic,
		Department:        "platform",
	}
	s.validScores = models.ScoreSet{Confidentiality: 3, Integrity: 3, Availability: 3, Likelihood: 2}
}

func (s *RiskSuite) newProposed() *models.Risk {
	r, err := models.NewRisk(id.NewRiskID(), s.validDetails, s.validScores, models.TreatmentModify, models.StatusProposed, s.now)
	s.Require().NoError(err)
	return r
}

func (s *RiskSuite) TestConstructionInvariants() {
	s.Run("rejects empty title", func() {
		details := s.validDetails
		details.Title = "   "
		_, err := models.NewRisk(id.NewRiskID(), details, s.validScores, models.TreatmentAccept, models.StatusDraft, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects oversized title", func() {
		details := s.validDetails
		for len(details.Title) <= 200 {
			details.Title += details.Title
		}
		_, err := models.NewRisk(id.NewRiskID(), details, s.validScores, models.TreatmentAccept, models.StatusDraft, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects invalid nature", func() {
		details := s.validDetails
		details.Nature = models.RiskNature("TEMPLATE")
		_, err := models.NewRisk(id.NewRiskID(), details, s.validScores, models.TreatmentAccept, models.StatusDraft, s.now)
		s.Require().Error(err)
	})

	s.Run("rejects terminal initial status", func() {
		for _, status := range []models.RiskStatus{models.StatusActive, models.StatusRejected, models.StatusMerged, models.StatusArchived} {
			_, err := models.NewRisk(id.NewRiskID(), s.validDetails, s.validScores, models.TreatmentAccept, status, s.now)
			s.Require().Error(err, status)
		}
	})

	s.Run("computes assessment on construction", func() {
		r, err := models.NewRisk(id.NewRiskID(), s.validDetails, s.validScores, models.TreatmentAccept, models.StatusDraft, s.now)
		s.Require().NoError(err)
		s.Equal(18, r.Assessment.Score)
		s.Equal(scoring.LevelMedium, r.Assessment.Level)
		s.Equal(s.now, r.DateAdded)
	})

	s.Run("clamps out-of-range scores instead of rejecting", func() {
		r, err := models.NewRisk(id.NewRiskID(), s.validDetails,
			models.ScoreSet{Confidentiality: 0, Integrity: 9, Availability: -2, Likelihood: 7},
			models.TreatmentAccept, models.StatusDraft, s.now)
		s.Require().NoError(err)
		s.Equal(models.ScoreSet{Confidentiality: 1, Integrity: 5, Availability: 1, Likelihood: 5}, r.Scores)
		s.Equal((1+5+1)*5, r.Assessment.Score)
	})
}

func (s *RiskSuite) TestSubmit() {
	s.Run("draft enters review queue", func() {
		r, err := models.NewRisk(id.NewRiskID(), s.validDetails, s.validScores, models.TreatmentAccept, models.StatusDraft, s.now)
		s.Require().NoError(err)

		later := s.now.Add(time.Hour)
		s.Require().NoError(r.Submit(later))
		s.Equal(models.StatusProposed, r.Status)
		s.Equal(later, r.UpdatedAt)
	})

	s.Run("proposed risk cannot be resubmitted", func() {
		r := s.newProposed()
		err := r.Submit(s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RiskSuite) TestApprove() {
	s.Run("proposed risk activates with recomputed score", func() {
		r := s.newProposed()

		s.Require().NoError(r.Approve(nil, s.now))
		s.Equal(models.StatusActive, r.Status)
		s.Equal(18, r.Assessment.Score)
		s.Equal(scoring.LevelMedium, r.Assessment.Level)
	})

	s.Run("revised scores overwrite initial inputs", func() {
		r := s.newProposed()

		revised := &models.ScoreSet{Confidentiality: 5, Integrity: 5, Availability: 5, Likelihood: 5}
		s.Require().NoError(r.Approve(revised, s.now))
		s.Equal(models.StatusActive, r.Status)
		s.Equal(75, r.Assessment.Score)
		s.Equal(scoring.LevelHigh, r.Assessment.Level)
		s.Equal(*revised, r.Scores)
	})

	s.Run("revised scores are clamped", func() {
		r := s.newProposed()

		s.Require().NoError(r.Approve(&models.ScoreSet{Confidentiality: 99, Integrity: 0, Availability: 3, Likelihood: -1}, s.now))
		s.Equal(models.ScoreSet{Confidentiality: 5, Integrity: 1, Availability: 3, Likelihood: 1}, r.Scores)
	})

	s.Run("approval clears a stale rejection reason", func() {
		r := s.newProposed()
		r.RejectionReason = "left over from a prior life"

		s.Require().NoError(r.Approve(nil, s.now))
		s.Empty(r.RejectionReason)
	})

	s.Run("draft risk cannot be approved", func() {
		r, err := models.NewRisk(id.NewRiskID(), s.validDetails, s.validScores, models.TreatmentAccept, models.StatusDraft, s.now)
		s.Require().NoError(err)

		err = r.Approve(nil, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("second approval is rejected, not silently reapplied", func() {
		r := s.newProposed()
		s.Require().NoError(r.Approve(nil, s.now))

		err := r.Approve(nil, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Contains(err.Error(), "ACTIVE")
	})
}

func (s *RiskSuite) TestReject() {
	s.Run("records the reason verbatim", func() {
		r := s.newProposed()

		s.Require().NoError(r.Reject("Invalid risk assessment", s.now))
		s.Equal(models.StatusRejected, r.Status)
		s.Equal("Invalid risk assessment", r.RejectionReason)
	})

	s.Run("rejection leaves scores untouched", func() {
		r := s.newProposed()
		before := r.Assessment

		s.Require().NoError(r.Reject("duplicate of existing entry", s.now))
		s.Equal(before, r.Assessment)
		s.Equal(s.validScores, r.Scores)
	})

	s.Run("whitespace reason fails validation and leaves status unchanged", func() {
		r := s.newProposed()

		for _, reason := range []string{"", "   ", "\t\n"} {
			err := r.Reject(reason, s.now)
			s.Require().Error(err, "reason %q", reason)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Equal(models.StatusProposed, r.Status)
			s.Empty(r.RejectionReason)
		}
	})

	s.Run("active risk cannot be rejected", func() {
		r := s.newProposed()
		s.Require().NoError(r.Approve(nil, s.now))

		err := r.Reject("too late", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RiskSuite) TestMerge() {
	s.Run("valid merge records provenance and leaves target untouched", func() {
		source := s.newProposed()
		target := s.newProposed()
		s.Require().NoError(target.Approve(nil, s.now))
		targetBefore := *target

		s.Require().NoError(source.CanMergeInto(target))
		source.ApplyMerge(target.ID, s.now)

		s.Equal(models.StatusMerged, source.Status)
		s.Require().NotNil(source.MergedInto)
		s.Equal(target.ID, *source.MergedInto)
		s.Equal(targetBefore, *target)
	})

	s.Run("self merge is rejected", func() {
		r := s.newProposed()
		err := r.CanMergeInto(r)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("non-active target is rejected", func() {
		source := s.newProposed()
		target := s.newProposed()

		err := source.CanMergeInto(target)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("merged target is rejected", func() {
		source := s.newProposed()
		target := s.newProposed()
		s.Require().NoError(target.Approve(nil, s.now))
		other := s.newProposed()
		s.Require().NoError(other.CanMergeInto(target))
		other.ApplyMerge(target.ID, s.now)

		err := source.CanMergeInto(other)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing target is not found", func() {
		source := s.newProposed()
		err := source.CanMergeInto(nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("active source cannot merge", func() {
		source := s.newProposed()
		s.Require().NoError(source.Approve(nil, s.now))
		target := s.newProposed()
		s.Require().NoError(target.Approve(nil, s.now))

		err := source.CanMergeInto(target)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RiskSuite) TestArchive() {
	s.Run("archives from any state", func() {
		for _, setup := range []func() *models.Risk{
			func() *models.Risk { return s.newProposed() },
			func() *models.Risk {
				r := s.newProposed()
				s.Require().NoError(r.Approve(nil, s.now))
				return r
			},
			func() *models.Risk {
				r := s.newProposed()
				s.Require().NoError(r.Reject("noise", s.now))
				return r
			},
		} {
			r := setup()
			r.ApplyArchive(s.now)
			s.Equal(models.StatusArchived, r.Status)
			s.True(r.Archived)
		}
	})

	s.Run("archival is idempotent", func() {
		r := s.newProposed()
		r.ApplyArchive(s.now)
		updatedAt := r.UpdatedAt

		r.ApplyArchive(s.now.Add(time.Hour))
		s.Equal(updatedAt, r.UpdatedAt)
	})
}

func (s *RiskSuite) TestMitigation() {
	intp := func(v int) *int { return &v }

	s.Run("partial inputs leave the derived result unset", func() {
		r := s.newProposed()
		r.SetMitigation(intp(2), intp(2), intp(2), nil, s.now)

		s.False(r.IsMitigated())
		s.Nil(r.Mitigation.Result)
		s.NotNil(r.Mitigation.Confidentiality)
	})

	s.Run("complete inputs derive score and level", func() {
		r := s.newProposed()
		r.SetMitigation(intp(2), intp(2), intp(2), intp(2), s.now)

		s.True(r.IsMitigated())
		s.Require().NotNil(r.Mitigation.Result)
		s.Equal(12, r.Mitigation.Result.Score)
		s.Equal(scoring.LevelLow, r.Mitigation.Result.Level)
	})

	s.Run("mitigation inputs are clamped", func() {
		r := s.newProposed()
		r.SetMitigation(intp(0), intp(9), intp(3), intp(2), s.now)

		s.Require().NotNil(r.Mitigation.Result)
		s.Equal((1+5+3)*2, r.Mitigation.Result.Score)
	})

	s.Run("clearing returns to the not-mitigated state", func() {
		r := s.newProposed()
		r.SetMitigation(intp(2), intp(2), intp(2), intp(2), s.now)
		s.Require().True(r.IsMitigated())

		r.ClearMitigation(s.now)
		s.False(r.IsMitigated())
		s.Nil(r.Mitigation.Confidentiality)
		s.Nil(r.Mitigation.Result)
	})

	s.Run("clearing twice is a no-op", func() {
		r := s.newProposed()
		r.ClearMitigation(s.now)
		updatedAt := r.UpdatedAt

		r.ClearMitigation(s.now.Add(time.Hour))
		s.Equal(updatedAt, r.UpdatedAt)
	})

	s.Run("updating mitigation replaces the previous inputs", func() {
		r := s.newProposed()
		r.SetMitigation(intp(2), intp(2), intp(2), intp(2), s.now)
		r.SetMitigation(intp(1), intp(1), nil, intp(1), s.now)

		s.False(r.IsMitigated())
		s.Nil(r.Mitigation.Availability)
	})
}

func (s *RiskSuite) TestPolicyNonConformance() {
	intp := func(v int) *int { return &v }
	highScores := models.ScoreSet{Confidentiality: 4, Integrity: 4, Availability: 4, Likelihood: 4}

	s.Run("modify treatment on high risk without mitigation is non-conformant", func() {
		r, err := models.NewRisk(id.NewRiskID(), s.validDetails, highScores, models.TreatmentModify, models.StatusProposed, s.now)
		s.Require().NoError(err)

		s.True(r.RequiresMitigation())
		s.True(r.PolicyNonConformant())
	})

	s.Run("complete mitigation restores conformance", func() {
		r, err := models.NewRisk(id.NewRiskID(), s.validDetails, highScores, models.TreatmentModify, models.StatusProposed, s.now)
		s.Require().NoError(err)

		r.SetMitigation(intp(1), intp(1), intp(1), intp(1), s.now)
		s.True(r.RequiresMitigation())
		s.False(r.PolicyNonConformant())
	})

	s.Run("accept treatment never requires mitigation", func() {
		r, err := models.NewRisk(id.NewRiskID(), s.validDetails, highScores, models.TreatmentAccept, models.StatusProposed, s.now)
		s.Require().NoError(err)

		s.False(r.RequiresMitigation())
		s.False(r.PolicyNonConformant())
	})

	s.Run("medium risk never requires mitigation", func() {
		r := s.newProposed()
		s.False(r.RequiresMitigation())
	})
}

func (s *RiskSuite) TestControlLinkage() {
	s.Run("link and unlink maintain the set", func() {
		r := s.newProposed()
		controlID := id.NewControlID()

		s.True(r.LinkControl(controlID, s.now))
		s.Len(r.ControlIDs, 1)

		s.False(r.LinkControl(controlID, s.now), "relinking is a no-op")
		s.Len(r.ControlIDs, 1)

		s.True(r.UnlinkControl(controlID, s.now))
		s.Empty(r.ControlIDs)

		s.False(r.UnlinkControl(controlID, s.now), "unlinking an absent control is a no-op")
	})
}

func (s *RiskSuite) TestReviewScheduling() {
	s.Run("static risk records review dates", func() {
		r := s.newProposed()
		next := s.now.AddDate(1, 0, 0)

		s.Require().NoError(r.CanMarkReviewed())
		r.ApplyReview(&next, s.now)

		s.Require().NotNil(r.LastReviewDate)
		s.Equal(s.now, *r.LastReviewDate)
		s.Require().NotNil(r.NextReviewDate)
		s.Equal(next, *r.NextReviewDate)
	})

	s.Run("instance risk rejects review scheduling", func() {
		details := s.validDetails
		details.Nature = models.NatureInstance
		r, err := models.NewRisk(id.NewRiskID(), details, s.validScores, models.TreatmentAccept, models.StatusProposed, s.now)
		s.Require().NoError(err)

		err = r.CanMarkReviewed()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
