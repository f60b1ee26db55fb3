package sim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"

	fx "github.com/robotalks/relaynode/pkg/framework"
	"github.com/robotalks/relaynode/pkg/tick"
)

// Step sets the raw port value at a number of seconds after start.
type Step struct {
	At   uint16
	Port byte
}

// Script is a list of Steps ordered by time.
type Script []Step

// ParseScript parses "SECONDS:PORT" pairs separated by commas, e.g.
// "0:0xff,2:0xfb,5:0xfa". PORT accepts any base strconv understands.
func ParseScript(s string) (Script, error) {
	var script Script
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid script step %q", item)
		}
		at, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid step time %q: %w", parts[0], err)
		}
		port, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid step port %q: %w", parts[1], err)
		}
		script = append(script, Step{At: uint16(at), Port: byte(port)})
	}
	sort.SliceStable(script, func(i, j int) bool { return script[i].At < script[j].At })
	return script, nil
}

// Player applies a Script to a Board as simulated time passes.
type Player struct {
	Board  *Board
	Clock  tick.Source
	Script Script
	// Loop restarts the script after the last step.
	Loop bool

	started bool
	startAt uint16
	next    int
}

// Done indicates all steps are applied.
func (p *Player) Done() bool {
	return !p.Loop && p.next >= len(p.Script)
}

// Apply applies all steps due at current time.
func (p *Player) Apply() {
	if !p.started {
		p.started, p.startAt = true, p.Clock.NowSeconds()
	}
	if len(p.Script) == 0 {
		return
	}
	elapsed := p.Clock.ElapsedSeconds(p.startAt)
	for p.next < len(p.Script) && p.Script[p.next].At <= elapsed {
		step := p.Script[p.next]
		glog.V(2).Infof("script +%ds: port=0x%02x", step.At, step.Port)
		p.Board.SetPort(step.Port)
		p.next++
	}
	if p.next >= len(p.Script) && p.Loop && elapsed > p.Script[len(p.Script)-1].At {
		p.startAt, p.next = p.Clock.NowSeconds(), 0
	}
}

// Control implements Controller.
func (p *Player) Control(fx.ControlContext) error {
	p.Apply()
	return nil
}

// AddToLoop implements LoopAdder.
func (p *Player) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvTop, p)
}
