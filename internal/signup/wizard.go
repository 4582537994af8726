package signup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Wizard step numbers
const (
	StepPersonalInfo = 1
	StepServices     = 2
	StepVerification = 3
	StepPricing      = 4
)

// StepInfo describes one wizard step
type StepInfo struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var steps = []StepInfo{
	{StepPersonalInfo, "Personal Info", "Your details"},
	{StepServices, "Services", "What you offer"},
	{StepVerification, "Verification", "Shop images"},
	{StepPricing, "Pricing", "Set your rates"},
}

var (
	// ErrUnknownStep is returned for a step outside 1..4
	ErrUnknownStep = errors.New("unknown signup step")

	// ErrIncomplete is returned when submitting before every step passes
	ErrIncomplete = errors.New("signup application incomplete")
)

// ValidationError carries field-level messages keyed by JSON field
type ValidationError struct {
	Step   int
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	return fmt.Sprintf("step %d invalid: %s", e.Step, strings.Join(fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrIncomplete
}

// Wizard walks a technician through the four signup steps
type Wizard struct {
	step int
	app  Application
}

// NewWizard starts an empty wizard on step 1
func NewWizard() *Wizard {
	return &Wizard{step: StepPersonalInfo, app: Application{Pricing: Pricing{}}}
}

// NewWizardFrom starts a wizard on step 1 with the form already filled in
func NewWizardFrom(app Application) *Wizard {
	w := &Wizard{step: StepPersonalInfo, app: app}
	if w.app.Pricing == nil {
		w.app.Pricing = Pricing{}
	}
	return w
}

// Step returns the current step number
func (w *Wizard) Step() int {
	return w.step
}

func (w *Wizard) SetPersonalInfo(info PersonalInfo)     { w.app.PersonalInfo = info }
func (w *Wizard) SetServices(selection ServiceSelection) { w.app.ServiceType = selection }
func (w *Wizard) SetVerification(v Verification)         { w.app.Verification = v }
func (w *Wizard) SetPricing(p Pricing)                   { w.app.Pricing = p }

// Application returns the form as entered so far
func (w *Wizard) Application() Application {
	return w.app
}

// CanProceed reports whether the current step has its required input
func (w *Wizard) CanProceed() bool {
	return w.StepComplete(w.step)
}

// StepComplete reports whether the given step has its required input
func (w *Wizard) StepComplete(step int) bool {
	switch step {
	case StepPersonalInfo:
		p := w.app.PersonalInfo
		return p.TechnicianName != "" && p.ShopName != "" && p.PersonalContact != "" &&
			p.ShopContact != "" && p.ShopAddress != "" && p.GPSLocation != ""
	case StepServices:
		return len(w.app.ServiceType.Services) > 0 && len(w.app.ServiceType.VehicleTypes) > 0
	case StepVerification:
		return w.app.Verification.ShopImage != ""
	case StepPricing:
		return true
	}
	return false
}

// Next advances one step when the current step can proceed. It never moves past the last step.
func (w *Wizard) Next() int {
	if w.step < StepPricing && w.CanProceed() {
		w.step++
	}
	return w.step
}

// Previous goes back one step. It never moves before the first step.
func (w *Wizard) Previous() int {
	if w.step > StepPersonalInfo {
		w.step--
	}
	return w.step
}

// Validate returns field errors for a step, empty when the step is valid
func (w *Wizard) Validate(step int) (map[string]string, error) {
	switch step {
	case StepPersonalInfo:
		return validateStruct(&w.app.PersonalInfo), nil
	case StepServices:
		return validateStruct(&w.app.ServiceType), nil
	case StepVerification:
		return validateStruct(&w.app.Verification), nil
	case StepPricing:
		return w.app.Pricing.Validate(w.app.ServiceType.Services), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownStep, step)
}

// Submit validates every step and stores the application for review
func (w *Wizard) Submit(ctx context.Context, store ApplicationStore) (*Application, error) {
	for _, s := range steps {
		fieldErrors, err := w.Validate(s.ID)
		if err != nil {
			return nil, err
		}
		if len(fieldErrors) > 0 {
			w.step = s.ID
			return nil, &ValidationError{Step: s.ID, Fields: fieldErrors}
		}
	}

	app := w.app
	app.ID = uuid.NewString()
	app.Status = StatusPendingReview
	app.SubmittedAt = time.Now().UTC()
	app.Verification.GSTINNumber = strings.ToUpper(app.Verification.GSTINNumber)

	if err := store.SaveApplication(ctx, &app); err != nil {
		return nil, fmt.Errorf("failed to save application: %w", err)
	}
	return &app, nil
}
