package player

import "errors"

// ErrIdentityCollision is reported when a name-keyed match disagrees with the
// stored row on birth year. The rows are merged anyway.
var ErrIdentityCollision = errors.New("player identity collision")
