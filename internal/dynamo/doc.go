// Package dynamo holds the integration-level primitives shared by the
// multibody system, the integrators and the simulator:
//
//   - [State]: the flat vector an integrator advances, laid out [q; u; z]
//   - [System]: dy/dt = f(y, c, t) for a control vector c
//   - [SecondOrder]: systems that expose qdotdot for position-level schemes
//   - [Projector]: systems whose coordinates live on a constraint manifold
//   - [Integrator] and [AdaptiveIntegrator]: single-step schemes
//
// # Thread Safety
//
// Systems keep scratch storage for derivative evaluation and are not safe
// for concurrent use. Run independent systems, each with its own state,
// on separate goroutines.
package dynamo
