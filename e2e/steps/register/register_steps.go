package register

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the main test context the register steps need.
type TestContext interface {
	POST(path string, body map[string]any) error
	PUT(path string, body map[string]any) error
	GET(path string) error
	LastStatus() int
	GetResponseField(path string) (any, error)
	SetRiskID(id string)
	GetRiskID() string
	SetTargetRiskID(id string)
	GetTargetRiskID() string
	SetControlID(id string)
	GetControlID() string
}

// RegisterSteps registers the risk lifecycle step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registerSteps{tc: tc}

	ctx.Step(`^I create a risk titled "([^"]*)" scored (\d+),(\d+),(\d+),(\d+)$`, steps.createDraftRisk)
	ctx.Step(`^I create a risk titled "([^"]*)" scored (\d+),(\d+),(\d+),(\d+) with treatment "([^"]*)"$`, steps.createDraftRiskWithTreatment)
	ctx.Step(`^I create a proposed risk titled "([^"]*)" scored (\d+),(\d+),(\d+),(\d+)$`, steps.createProposedRisk)
	ctx.Step(`^an active risk titled "([^"]*)" exists$`, steps.activeRiskExists)
	ctx.Step(`^I submit the risk for review$`, steps.submitRisk)
	ctx.Step(`^I approve the risk$`, steps.approveRisk)
	ctx.Step(`^I reject the risk without a reason$`, steps.rejectWithoutReason)
	ctx.Step(`^I reject the risk with reason "([^"]*)"$`, steps.rejectWithReason)
	ctx.Step(`^I merge the risk into the active one$`, steps.mergeIntoActive)
	ctx.Step(`^I set mitigation scores (\d+),(\d+),(\d+),(\d+)$`, steps.setMitigation)
	ctx.Step(`^I link the first catalog control to the risk$`, steps.linkFirstControl)
	ctx.Step(`^the review inbox should list the risk as proposed$`, steps.inboxListsRisk)
	ctx.Step(`^the field "([^"]*)" should equal the active risk id$`, steps.fieldEqualsActiveRiskID)
}

type registerSteps struct {
	tc TestContext
}

func (s *registerSteps) createRisk(title string, c, i, a, l int, extra map[string]any) error {
	body := map[string]any{
		"title":         title,
		"risk_category": "security",
		"scores": map[string]any{
			"confidentiality": c,
			"integrity":       i,
			"availability":    a,
			"likelihood":      l,
		},
	}
	for key, value := range extra {
		body[key] = value
	}
	if err := s.tc.POST("/risks", body); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return nil // let the status assertion step report the failure
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.SetRiskID(fmt.Sprint(id))
	return nil
}

func (s *registerSteps) createDraftRisk(title string, c, i, a, l int) error {
	return s.createRisk(title, c, i, a, l, nil)
}

func (s *registerSteps) createDraftRiskWithTreatment(title string, c, i, a, l int, treatment string) error {
	return s.createRisk(title, c, i, a, l, map[string]any{"treatment": treatment})
}

func (s *registerSteps) createProposedRisk(title string, c, i, a, l int) error {
	return s.createRisk(title, c, i, a, l, map[string]any{"status": "PROPOSED"})
}

// activeRiskExists provisions a risk all the way to ACTIVE and saves it as
// the merge target.
func (s *registerSteps) activeRiskExists(title string) error {
	if err := s.createRisk(title, 3, 3, 3, 2, map[string]any{"status": "PROPOSED"}); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("provisioning %q: create returned %d", title, s.tc.LastStatus())
	}
	targetID := s.tc.GetRiskID()
	if err := s.tc.POST("/risks/"+targetID+"/approve", nil); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("provisioning %q: approve returned %d", title, s.tc.LastStatus())
	}
	s.tc.SetTargetRiskID(targetID)
	return nil
}

func (s *registerSteps) submitRisk() error {
	return s.tc.POST("/risks/"+s.tc.GetRiskID()+"/submit", nil)
}

func (s *registerSteps) approveRisk() error {
	return s.tc.POST("/risks/"+s.tc.GetRiskID()+"/approve", nil)
}

func (s *registerSteps) rejectWithoutReason() error {
	return s.tc.POST("/risks/"+s.tc.GetRiskID()+"/reject", map[string]any{})
}

func (s *registerSteps) rejectWithReason(reason string) error {
	return s.tc.POST("/risks/"+s.tc.GetRiskID()+"/reject", map[string]any{"reason": reason})
}

func (s *registerSteps) mergeIntoActive() error {
	return s.tc.POST("/risks/"+s.tc.GetRiskID()+"/merge", map[string]any{
		"target_risk_id": s.tc.GetTargetRiskID(),
	})
}

func (s *registerSteps) setMitigation(c, i, a, l int) error {
	return s.tc.PUT("/risks/"+s.tc.GetRiskID()+"/mitigation", map[string]any{
		"confidentiality": c,
		"integrity":       i,
		"availability":    a,
		"likelihood":      l,
	})
}

func (s *registerSteps) linkFirstControl() error {
	if err := s.tc.GET("/controls"); err != nil {
		return err
	}
	items, err := s.tc.GetResponseField("items")
	if err != nil {
		return err
	}
	list, ok := items.([]any)
	if !ok || len(list) == 0 {
		return fmt.Errorf("control catalog is empty")
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected catalog entry shape: %T", list[0])
	}
	controlID := fmt.Sprint(first["id"])
	s.tc.SetControlID(controlID)
	return s.tc.POST("/risks/"+s.tc.GetRiskID()+"/controls/"+controlID, nil)
}

func (s *registerSteps) inboxListsRisk() error {
	if err := s.tc.GET("/review/inbox"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("inbox returned %d", s.tc.LastStatus())
	}
	proposed, err := s.tc.GetResponseField("proposed")
	if err != nil {
		return err
	}
	list, ok := proposed.([]any)
	if !ok {
		return fmt.Errorf("proposed is not a list")
	}
	for _, entry := range list {
		risk, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if fmt.Sprint(risk["id"]) == s.tc.GetRiskID() {
			return nil
		}
	}
	return fmt.Errorf("risk %s not in the proposed inbox", s.tc.GetRiskID())
}

func (s *registerSteps) fieldEqualsActiveRiskID(path string) error {
	value, err := s.tc.GetResponseField(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(value); got != s.tc.GetTargetRiskID() {
		return fmt.Errorf("field %q: expected %q, got %q", path, s.tc.GetTargetRiskID(), got)
	}
	return nil
}
