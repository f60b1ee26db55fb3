package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/controller"
	fx "github.com/robotalks/relaynode/pkg/framework"
	"github.com/robotalks/relaynode/pkg/status"
	"github.com/robotalks/relaynode/pkg/tick"
	"github.com/robotalks/relaynode/pkg/transport"
	"github.com/robotalks/relaynode/pkg/transport/mem"
)

var (
	nodeIP      = transport.IPAddr{10, 0, 0, 2}
	nodeMAC     = transport.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	receiverIP  = transport.IPAddr{10, 0, 0, 1}
	receiverMAC = transport.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}

	silent bool
)

func init() {
	controller.SetupFlags()
	flag.BoolVar(&silent, "silent", silent, "Receiver ignores resolution requests")
}

// newReceiver attaches the status receiver, which logs every payload.
func newReceiver(network *mem.Network, conf *controller.Config) *mem.Host {
	host := network.Attach(receiverIP, receiverMAC)
	host.SetSilent(silent)
	host.Handler = transport.HandleDatagramFunc(func(d transport.Datagram) {
		p, err := status.Parse(d.Data)
		if err != nil {
			log.Printf("%s:%d bad payload: %v", d.SrcIP, d.SrcPort, err)
			return
		}
		log.Printf("%s:%d %s", d.SrcIP, d.SrcPort, p)
	})
	host.Open(uint16(conf.RemotePort), &transport.Endpoint{IP: nodeIP}, uint16(conf.LocalPort))
	return host
}

func main() {
	flag.Parse()
	defer glog.Flush()
	log.SetFlags(log.Lmicroseconds)

	conf := controller.NewConfig().MustLoad()
	conf.Board = controller.BoardSim
	if conf.Peer == controller.DefaultPeer {
		conf.Peer = receiverIP.String()
	}
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}

	network := mem.NewNetwork()
	receiver := newReceiver(network, conf)
	node := network.Attach(nodeIP, nodeMAC)

	ticker := tick.NewTicker(conf.TicksPerSecond)
	b, player, err := conf.NewBoard(ticker.Counter)
	if err != nil {
		log.Fatalln(err)
	}
	ctl, err := controller.New(b, node, ticker.Counter, conf.Options())
	if err != nil {
		log.Fatalln(err)
	}
	defer ctl.Close()
	ctl.Ticker = ticker
	if player != nil {
		ctl.With(player)
	}
	if conf.Registry.Enabled() {
		ctl.Registrar = conf.Registry.MustNewEnv().Registrar
	}

	loop := fx.NewLoop()
	loop.Interval = conf.LoopInterval
	loop.Add(ctl)
	loop.AddController(fx.PrLvPump, fx.ControlFunc(func(fx.ControlContext) error {
		receiver.Pump()
		return nil
	}))
	loop.RunOrFail(fx.NewRunner().HandleSignals().Context)
}
