package common

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the main test context the generic steps need.
type TestContext interface {
	GET(path string) error
	LastStatus() int
	GetResponseField(path string) (any, error)
}

// RegisterSteps registers the generic request and assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the register is reachable$`, steps.registerIsReachable)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the field "([^"]*)" should have (\d+) entr(?:y|ies)$`, steps.fieldShouldHaveEntries)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) registerIsReachable() error {
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("healthz returned %d", s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) responseStatusShouldBe(expected int) error {
	if s.tc.LastStatus() != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(path, expected string) error {
	value, err := s.tc.GetResponseField(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(value); got != expected {
		return fmt.Errorf("field %q: expected %q, got %q", path, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldHaveEntries(path string, expected int) error {
	value, err := s.tc.GetResponseField(path)
	if err != nil {
		return err
	}
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("field %q is not a list", path)
	}
	if len(list) != expected {
		return fmt.Errorf("field %q: expected %d entries, got %d", path, expected, len(list))
	}
	return nil
}
