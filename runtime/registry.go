package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jacekv/minisol/pubkey"
)

// Program is a native program linked into the binary.
//
// Programs register themselves in init():
//
//	runtime.MustRegister(runtime.Program{ ... })
//
// The binary must import the program package for registration to occur,
// typically as a blank import in the daemon.
type Program struct {
	// ID is the program address instructions dispatch on.
	ID pubkey.PublicKey
	// Name appears in program logs and error messages.
	Name string
	// Process executes one instruction in the given invocation context.
	Process func(*InvokeContext) error
}

var (
	regMu    sync.RWMutex
	programs = map[pubkey.PublicKey]Program{}
)

// Register registers a native program.
func Register(p Program) error {
	if p.ID.IsZero() && p.Name != "system" {
		return fmt.Errorf("runtime: program %q has a zero ID", p.Name)
	}
	if p.Name == "" {
		return fmt.Errorf("runtime: program name is required")
	}
	if p.Process == nil {
		return fmt.Errorf("runtime: program %q missing Process", p.Name)
	}

	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := programs[p.ID]; exists {
		return fmt.Errorf("runtime: program %s already registered", p.ID)
	}
	programs[p.ID] = p
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(p Program) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the program registered at id.
func Lookup(id pubkey.PublicKey) (Program, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	p, ok := programs[id]
	return p, ok
}

// Programs returns all registered programs, sorted by name.
func Programs() []Program {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Program, 0, len(programs))
	for _, p := range programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
