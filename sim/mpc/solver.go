// Solver boundary for the controller NLP. The optimisation problem is
// handed to gonum's derivative-free Nelder-Mead method; box constraints on
// fares and fleet deltas are enforced by clamping inside the rollout plus a
// quadratic out-of-box penalty.

package mpc

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// Result is the outcome of one successful solve.
type Result struct {
	Controls   Controls
	Objective  float64
	Trajectory Trajectory
}

// Solve maximises the horizon objective over fare and fleet-size controls.
// On any solver failure the caller keeps its previous controls.
func Solve(in Inputs) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			obj, _ := in.Rollout(in.decode(x))
			// Minimiser sign convention plus bounds penalty.
			return -obj + in.boundsPenalty(x)
		},
	}

	settings := &optimize.Settings{
		MajorIterations: 4000,
		FuncEvaluations: 20000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-6,
			Iterations: 100,
		},
	}

	res, err := optimize.Minimize(problem, in.initialGuess(), settings, &optimize.NelderMead{})
	if err != nil {
		return Result{}, fmt.Errorf("mpc solve: %w", err)
	}
	if res.Status != optimize.Success && res.Status != optimize.FunctionConvergence &&
		res.Status != optimize.MethodConverge && res.Status != optimize.StepConvergence {
		return Result{}, fmt.Errorf("mpc solve: terminated with status %v", res.Status)
	}

	controls := in.clampControls(in.decode(res.X))
	objective, traj := in.Rollout(controls)
	return Result{
		Controls:   controls,
		Objective:  objective,
		Trajectory: traj,
	}, nil
}

func errBadHorizon(n, nc int) error {
	return fmt.Errorf("mpc horizon: N=%d, Nc=%d (need 0 < Nc <= N)", n, nc)
}

func errBadIntervals(tauC, tauK int64) error {
	return fmt.Errorf("mpc intervals: tau_c=%d must be a positive multiple of tau_k=%d", tauC, tauK)
}

func errShortSeries(demand, supply, n int) error {
	return fmt.Errorf("mpc series: demand has %d, supply has %d entries, need %d", demand, supply, n)
}

func errShortDraws(kind, n int) error {
	return fmt.Errorf("mpc draws: kind %d has fewer than %d duration draws", kind, n)
}

func errNaNSeries() error {
	return fmt.Errorf("mpc series: NaN in exogenous demand or supply")
}
