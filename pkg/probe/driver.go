package probe

import (
	"errors"
	"fmt"

	"github.com/entrhq/qarunner/pkg/types"
)

const (
	inputSelector  = "input, textarea, select"
	buttonSelector = `button, input[type="submit"]`
)

// Forms inventories the forms, inputs and buttons on the page and checks
// that the first input can be interacted with. Nothing is submitted.
func Forms(env Env, driver Driver) (types.ProbeResult, error) {
	goal := types.GoalForms.String()

	err := driver.Get(env.TargetURL)
	if err == nil {
		err = driver.WaitForElement("body", env.WaitTimeout)
	}
	if errors.Is(err, ErrWaitTimeout) {
		return types.NewFailedResult(goal, "Page load timeout", env.now()), nil
	}
	if err != nil {
		return types.ProbeResult{}, err
	}

	forms, err := driver.Count("form")
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("count forms: %w", err)
	}
	inputs, err := driver.Count(inputSelector)
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("count inputs: %w", err)
	}
	buttons, err := driver.Count(buttonSelector)
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("count buttons: %w", err)
	}

	details := map[string]interface{}{
		"forms_count":   forms,
		"inputs_count":  inputs,
		"buttons_count": buttons,
		"forms_present": forms > 0,
	}

	if forms > 0 && inputs > 0 {
		interactable, err := driver.FirstInteractable(inputSelector)
		details["first_input_interactable"] = err == nil && interactable
	}

	return types.NewPassedResult(goal, details, env.now()), nil
}

// CrossEngineNavigation loads the target on the driver engine as an
// independent confirmation of the page-engine navigation check.
func CrossEngineNavigation(env Env, driver Driver) (types.ProbeResult, error) {
	start := env.now()
	if err := driver.Get(env.TargetURL); err != nil {
		return types.ProbeResult{}, err
	}
	if err := driver.WaitForElement("body", env.WaitTimeout); err != nil {
		return types.ProbeResult{}, err
	}
	loadTime := env.now().Sub(start)

	finalURL, err := driver.CurrentURL()
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("read current url: %w", err)
	}
	title, err := driver.Title()
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("read title: %w", err)
	}

	return types.NewPassedResult(types.GoalCrossEngineNavigation.String(), map[string]interface{}{
		"target_url": env.TargetURL,
		"final_url":  finalURL,
		"page_title": title,
		"load_time":  formatSeconds(loadTime),
	}, env.now()), nil
}
