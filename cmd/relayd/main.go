package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/controller"
	fx "github.com/robotalks/relaynode/pkg/framework"
)

func init() {
	controller.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := controller.NewConfig().MustLoad()
	ctl := conf.MustNewController()
	defer func() {
		if err := ctl.Close(); err != nil {
			glog.Errorf("close error: %v", err)
		}
	}()

	loop := fx.NewLoop()
	loop.Interval = conf.LoopInterval
	loop.Add(ctl)
	loop.RunOrFail(fx.NewRunner().HandleSignals().Context)
}
