package adapter

import (
	"fmt"

	"github.com/nixxel-company-limited/zpl-print-server/config"
)

// New builds the backend selected by the configuration. Construction is
// side-effect-free except for the virtual backend, which creates its save
// directory (idempotent).
func New(cfg config.Printer) (Adapter, error) {
	switch cfg.Kind {
	case config.KindTCP:
		return NewTCP(cfg.TCP)
	case config.KindUSB:
		return NewUSB(cfg.USB)
	case config.KindVirtual:
		return NewVirtual(cfg.Virtual)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrConfiguration, cfg.Kind)
	}
}
