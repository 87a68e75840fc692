package twist

import "github.com/twistproto/twist/internal/constants"

// Re-exported tuning defaults. See Params for the per-socket knobs
// built from these.
const (
	DefaultRegisterLifetime = constants.DefaultRegisterLifetime
	DefaultPoolCullKeep     = constants.DefaultPoolCullKeep
	MinTableSize            = constants.MinTableSize
	MaxTableSize            = constants.MaxTableSize
	TicketSize              = constants.TicketSize
)
