// Package validation holds the presence checks run by the recipe editor.
// Per-step validators report every violation; ValidateCompleteForm stops at
// the first failing category and reports a single general message.
package validation

import (
	"strings"

	"recipebox/models"
)

// IngredientErrors are the field errors of one ingredient row.
type IngredientErrors struct {
	Name   string `json:"name,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// Errors aggregates validation messages by field.
type Errors struct {
	Title       string                   `json:"title,omitempty"`
	Ingredients map[int]IngredientErrors `json:"ingredients,omitempty"`
	Steps       map[int]string           `json:"steps,omitempty"`
	General     string                   `json:"general,omitempty"`
}

const (
	MsgTitleRequired     = "Recipe title is required"
	MsgNoIngredients     = "Please add at least one ingredient"
	MsgNameRequired      = "Name is required"
	MsgAmountRequired    = "Amount is required"
	MsgNoSteps           = "Please add at least one instruction step"
	MsgStepRequired      = "Step description is required"
	MsgFormTitle         = "Please enter a recipe title"
	MsgFormIngredientRow = "Please fill in all ingredient names"
	MsgFormSteps         = "Please fill in all steps"
)

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func ValidateBasicInfo(title string) Errors {
	var errs Errors
	if blank(title) {
		errs.Title = MsgTitleRequired
	}
	return errs
}

// ValidateIngredients checks one serving's ingredient list. servingSize is
// informational only.
func ValidateIngredients(ingredients []models.Ingredient, servingSize int) Errors {
	var errs Errors
	if len(ingredients) == 0 {
		errs.General = MsgNoIngredients
		return errs
	}

	for i, ing := range ingredients {
		var fe IngredientErrors
		if blank(ing.Name) {
			fe.Name = MsgNameRequired
		}
		if blank(ing.Amount) {
			fe.Amount = MsgAmountRequired
		}
		if fe != (IngredientErrors{}) {
			if errs.Ingredients == nil {
				errs.Ingredients = make(map[int]IngredientErrors)
			}
			errs.Ingredients[i] = fe
		}
	}
	return errs
}

func ValidateInstructions(steps []string) Errors {
	var errs Errors
	if len(steps) == 0 {
		errs.General = MsgNoSteps
		return errs
	}

	for i, step := range steps {
		if blank(step) {
			if errs.Steps == nil {
				errs.Steps = make(map[int]string)
			}
			errs.Steps[i] = MsgStepRequired
		}
	}
	return errs
}

// ValidateCompleteForm is the submit-time check. Ingredient amounts are not
// checked here.
func ValidateCompleteForm(form models.RecipeFormData) Errors {
	var errs Errors

	if blank(form.Title) {
		errs.General = MsgFormTitle
		return errs
	}

	for _, serving := range form.Servings {
		for _, ing := range form.Ingredients[serving] {
			if blank(ing.Name) {
				errs.General = MsgFormIngredientRow
				return errs
			}
		}
	}

	for _, step := range form.Steps {
		if blank(step) {
			errs.General = MsgFormSteps
			return errs
		}
	}

	return errs
}

// HasErrors reports whether errs carries any message.
func HasErrors(errs Errors) bool {
	return errs.General != "" ||
		errs.Title != "" ||
		len(errs.Ingredients) > 0 ||
		len(errs.Steps) > 0
}

// Editor steps accepted by ValidateStep.
const (
	StepBasic        = "basic"
	StepIngredients  = "ingredients"
	StepInstructions = "instructions"
)

// ValidateStep runs the validator of one editor step against form.
// Ingredients are checked for the current serving. ok is false for an
// unknown step name.
func ValidateStep(step string, form models.RecipeFormData) (errs Errors, ok bool) {
	switch step {
	case StepBasic:
		return ValidateBasicInfo(form.Title), true
	case StepIngredients:
		return ValidateIngredients(form.Ingredients[form.CurrentServing], form.CurrentServing), true
	case StepInstructions:
		return ValidateInstructions(form.Steps), true
	default:
		return Errors{}, false
	}
}
