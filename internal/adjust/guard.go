package adjust

import (
	"sync"

	"github.com/mtlprog/basket/internal/domain"
)

// PauseView reports whether a module is paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when module is paused. A nil view never pauses.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return domain.ErrModulePaused
	}
	return nil
}

// PauseSwitch is an in-process PauseView toggled per module name.
type PauseSwitch struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewPauseSwitch() *PauseSwitch {
	return &PauseSwitch{paused: make(map[string]bool)}
}

func (p *PauseSwitch) Pause(module string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = true
}

func (p *PauseSwitch) Unpause(module string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.paused, module)
}

func (p *PauseSwitch) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}
