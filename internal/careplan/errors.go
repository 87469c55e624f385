package careplan

import "github.com/rotisserie/eris"

var (
	// ErrInvalidInput is returned for malformed requests and ownership mismatches.
	ErrInvalidInput = eris.New("careplan: invalid input")
	// ErrPlantNotFound is returned when the plant does not exist.
	ErrPlantNotFound = eris.New("careplan: plant not found")
	// ErrPlanNotFound is returned when the plan does not exist.
	ErrPlanNotFound = eris.New("careplan: plan not found")
	// ErrInvalidTransition is returned when a plan cannot move to the requested state.
	ErrInvalidTransition = eris.New("careplan: invalid transition")
	// ErrGenerationTimeout is returned, wrapped as a transient error, when
	// generation exceeds its deadline. Nothing is persisted.
	ErrGenerationTimeout = eris.New("careplan: generation deadline exceeded")
)
