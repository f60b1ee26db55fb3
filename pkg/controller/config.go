package controller

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/board/rpio"
	"github.com/robotalks/relaynode/pkg/board/sim"
	fx "github.com/robotalks/relaynode/pkg/framework"
	"github.com/robotalks/relaynode/pkg/l1/env/node"
	"github.com/robotalks/relaynode/pkg/resolver"
	"github.com/robotalks/relaynode/pkg/status"
	"github.com/robotalks/relaynode/pkg/tick"
	"github.com/robotalks/relaynode/pkg/transport"
	"github.com/robotalks/relaynode/pkg/transport/udp"
)

// Board drivers
const (
	BoardSim  = "sim"
	BoardRPIO = "rpio"
)

// Defaults from the node firmware.
const (
	DefaultPeer       = "255.255.255.255"
	DefaultLocalPort  = 54123
	DefaultRemotePort = 54124
)

// MaxTicksPerSecond keeps one short tick at least a nanosecond.
const MaxTicksPerSecond = int(time.Second)

// Config provides the options to build a Controller.
type Config struct {
	// Peer is the IPv4 address of the status receiver.
	Peer string `yaml:"peer"`
	// PeerMAC binds Peer statically, skipping the neighbor table.
	PeerMAC    string `yaml:"peer-mac"`
	LocalPort  int    `yaml:"local-port"`
	RemotePort int    `yaml:"remote-port"`
	// TTL of outgoing datagrams, 0 for system default.
	TTL int `yaml:"ttl"`
	// RetryTimeout is the seconds between resolution attempts.
	RetryTimeout int `yaml:"retry-timeout"`
	// SendInterval is the seconds between periodic status sends.
	SendInterval int `yaml:"send-interval"`
	// Blink enables the heartbeat on the status LED.
	Blink bool `yaml:"blink"`

	// Board selects the board driver, sim or rpio.
	Board string      `yaml:"board"`
	Pins  rpio.PinMap `yaml:"pins"`
	// Script drives the sim board input port, see sim.ParseScript.
	Script string `yaml:"script"`

	LoopInterval   time.Duration `yaml:"loop-interval"`
	TicksPerSecond int           `yaml:"ticks-per-second"`

	Registry node.Config `yaml:"registry"`
}

var (
	defaultConfig = Config{
		Peer:           DefaultPeer,
		LocalPort:      DefaultLocalPort,
		RemotePort:     DefaultRemotePort,
		RetryTimeout:   int(resolver.DefaultRetryTimeout),
		SendInterval:   int(status.DefaultInterval),
		Board:          BoardSim,
		Pins:           rpio.DefaultPinMap(),
		LoopInterval:   fx.DefaultInterval,
		TicksPerSecond: tick.DefaultTicksPerSecond,
	}

	configFile string

	// flagFields copies explicitly set flags over values from a file.
	flagFields = map[string]func(*Config){
		"peer":          func(c *Config) { c.Peer = defaultConfig.Peer },
		"peer-mac":      func(c *Config) { c.PeerMAC = defaultConfig.PeerMAC },
		"local-port":    func(c *Config) { c.LocalPort = defaultConfig.LocalPort },
		"remote-port":   func(c *Config) { c.RemotePort = defaultConfig.RemotePort },
		"ttl":           func(c *Config) { c.TTL = defaultConfig.TTL },
		"retry-timeout": func(c *Config) { c.RetryTimeout = defaultConfig.RetryTimeout },
		"send-interval": func(c *Config) { c.SendInterval = defaultConfig.SendInterval },
		"blink":         func(c *Config) { c.Blink = defaultConfig.Blink },
		"board":         func(c *Config) { c.Board = defaultConfig.Board },
		"script":        func(c *Config) { c.Script = defaultConfig.Script },
		"loop-interval": func(c *Config) { c.LoopInterval = defaultConfig.LoopInterval },
		"type":          func(c *Config) { c.Registry.Info.Ref.Type = node.Default().Info.Ref.Type },
		"id":            func(c *Config) { c.Registry.Info.Ref.ID = node.Default().Info.Ref.ID },
		"mqtt":          func(c *Config) { c.Registry.MQTTBrokerURL = node.Default().MQTTBrokerURL },
	}
)

func envInt(name string, val *int) {
	if str := os.Getenv(name); str != "" {
		if n, err := strconv.Atoi(str); err == nil {
			*val = n
		}
	}
}

func init() {
	if val := os.Getenv("RELAY_PEER"); val != "" {
		defaultConfig.Peer = val
	}
	envInt("RELAY_LOCAL_PORT", &defaultConfig.LocalPort)
	envInt("RELAY_REMOTE_PORT", &defaultConfig.RemotePort)
	if val := os.Getenv("RELAY_BOARD"); val != "" {
		defaultConfig.Board = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML config file")
	flag.StringVar(&defaultConfig.Peer, "peer", defaultConfig.Peer, "Peer IPv4 address")
	flag.StringVar(&defaultConfig.PeerMAC, "peer-mac", defaultConfig.PeerMAC, "Static peer MAC address")
	flag.IntVar(&defaultConfig.LocalPort, "local-port", defaultConfig.LocalPort, "Local UDP port")
	flag.IntVar(&defaultConfig.RemotePort, "remote-port", defaultConfig.RemotePort, "Peer UDP port")
	flag.IntVar(&defaultConfig.TTL, "ttl", defaultConfig.TTL, "IP TTL of status datagrams")
	flag.IntVar(&defaultConfig.RetryTimeout, "retry-timeout", defaultConfig.RetryTimeout, "Seconds between resolution attempts")
	flag.IntVar(&defaultConfig.SendInterval, "send-interval", defaultConfig.SendInterval, "Seconds between status datagrams")
	flag.BoolVar(&defaultConfig.Blink, "blink", defaultConfig.Blink, "Blink status LED as heartbeat")
	flag.StringVar(&defaultConfig.Board, "board", defaultConfig.Board, "Board driver: sim, rpio")
	flag.StringVar(&defaultConfig.Script, "script", defaultConfig.Script, "Input script for sim board, e.g. 0:0xff,2:0xfb")
	flag.DurationVar(&defaultConfig.LoopInterval, "loop-interval", defaultConfig.LoopInterval, "Main loop interval")
	node.SetupFlags()
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Registry = *node.Default()
	return &conf
}

// Load merges the file given by -config, if any.
func (c *Config) Load() error {
	if configFile == "" {
		return nil
	}
	return c.LoadFile(configFile)
}

// MustLoad loads the config file and fails on error.
func (c *Config) MustLoad() *Config {
	if err := c.Load(); err != nil {
		log.Fatalln(err)
	}
	return c
}

// LoadFile merges a YAML file into c. Flags explicitly set on the
// command line win over the file.
func (c *Config) LoadFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return c.merge(data, flag.Visit)
}

func (c *Config) merge(data []byte, visit func(func(*flag.Flag))) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	visit(func(f *flag.Flag) {
		if apply, ok := flagFields[f.Name]; ok {
			apply(c)
		}
	})
	return nil
}

// Validate checks the values are in range.
func (c *Config) Validate() error {
	if _, err := transport.ParseIP(c.Peer); err != nil {
		return fmt.Errorf("peer: %w", err)
	}
	if c.PeerMAC != "" {
		if _, err := transport.ParseHardwareAddr(c.PeerMAC); err != nil {
			return fmt.Errorf("peer-mac: %w", err)
		}
	}
	for name, port := range map[string]int{"local-port": c.LocalPort, "remote-port": c.RemotePort} {
		if port <= 0 || port > 0xffff {
			return fmt.Errorf("%s: %d out of range", name, port)
		}
	}
	if c.RetryTimeout < 0 || c.RetryTimeout > 0xff {
		return fmt.Errorf("retry-timeout: %d out of range", c.RetryTimeout)
	}
	if c.SendInterval < 0 || c.SendInterval > 0xffff {
		return fmt.Errorf("send-interval: %d out of range", c.SendInterval)
	}
	if c.TicksPerSecond <= 0 || c.TicksPerSecond > MaxTicksPerSecond {
		return fmt.Errorf("ticks-per-second: %d out of range", c.TicksPerSecond)
	}
	if c.LoopInterval <= 0 {
		return fmt.Errorf("loop-interval: %s must be positive", c.LoopInterval)
	}
	switch c.Board {
	case BoardSim:
		if _, err := sim.ParseScript(c.Script); err != nil {
			return fmt.Errorf("script: %w", err)
		}
	case BoardRPIO:
		if err := c.Pins.Validate(); err != nil {
			return fmt.Errorf("pins: %w", err)
		}
	default:
		return fmt.Errorf("unknown board %q", c.Board)
	}
	return nil
}

// Options converts to controller Options with peer and timing.
func (c *Config) Options() Options {
	ip, _ := transport.ParseIP(c.Peer)
	return Options{
		Peer: transport.Endpoint{
			IP:         ip,
			LocalPort:  uint16(c.LocalPort),
			RemotePort: uint16(c.RemotePort),
		},
		RetryTimeout: uint8(c.RetryTimeout),
		SendInterval: uint16(c.SendInterval),
		Blink:        c.Blink,
	}
}

// NewBoard opens the configured board. The sim board gets a script
// player when a script is given.
func (c *Config) NewBoard(clock tick.Source) (board.Board, fx.LoopAdder, error) {
	switch c.Board {
	case BoardSim:
		script, err := sim.ParseScript(c.Script)
		if err != nil {
			return nil, nil, err
		}
		b := sim.New(sim.IdlePort)
		if len(script) == 0 {
			return b, nil, nil
		}
		return b, &sim.Player{Board: b, Clock: clock, Script: script}, nil
	case BoardRPIO:
		b, err := rpio.Open(c.Pins)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown board %q", c.Board)
}

// NewController creates a Controller on the host UDP transport, with
// its own Ticker and the registry when configured.
func (c *Config) NewController() (*Controller, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ticker := tick.NewTicker(c.TicksPerSecond)
	b, player, err := c.NewBoard(ticker.Counter)
	if err != nil {
		return nil, err
	}
	opts := c.Options()
	tr := udp.New()
	tr.TTL = c.TTL
	if c.PeerMAC != "" {
		mac, _ := transport.ParseHardwareAddr(c.PeerMAC)
		static := &udp.StaticNeighbors{Fallback: tr.Neighbors}
		static.Add(opts.Peer.IP, mac)
		tr.Neighbors = static
	}
	ctl, err := New(b, tr, ticker.Counter, opts)
	if err != nil {
		b.Close()
		return nil, err
	}
	ctl.Ticker = ticker
	ctl.OnClose(tr.CloseAll)
	if player != nil {
		ctl.With(player)
	}
	if c.Registry.Enabled() {
		env, err := c.Registry.NewEnv()
		if err != nil {
			ctl.Close()
			return nil, err
		}
		ctl.Registrar = env.Registrar
	}
	return ctl, nil
}

// MustNewController creates a Controller and fails on error.
func (c *Config) MustNewController() *Controller {
	ctl, err := c.NewController()
	if err != nil {
		log.Fatalln(err)
	}
	return ctl
}
