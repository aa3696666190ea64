package e2e

import (
	"github.com/cucumber/godog"

	"parapet/e2e/steps/common"
	"parapet/e2e/steps/register"
)

// RegisterSteps wires every step package onto the scenario context.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	register.RegisterSteps(ctx, tc)
}
