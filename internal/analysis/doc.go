// Package analysis characterizes trajectories after the fact: spectra of
// recorded coordinates, phase portraits and Poincaré sections built from
// stored runs, and finite-time divergence of perturbed copies of a model.
//
// A positive largest divergence rate indicates sensitive dependence on
// initial conditions:
//
//	divs, err := analysis.Sensitivity(ctx, cfg, reg, 1e-8)
//	if err == nil && analysis.Largest(divs).Rate > 0 {
//	    // chaotic over this horizon
//	}
package analysis
