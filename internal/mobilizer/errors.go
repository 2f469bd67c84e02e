package mobilizer

import "errors"

var (
	ErrUnknownKind    = errors.New("mobilizer: unknown kind")
	ErrBadParameter   = errors.New("mobilizer: invalid parameter")
	ErrNoEulerForm    = errors.New("mobilizer: kind has no quaternion/Euler duality")
	ErrCustomRequired = errors.New("mobilizer: custom kind needs an implementation, use NewCustom")
	ErrCoordinateSize = errors.New("mobilizer: coordinate slice has the wrong length")
)
