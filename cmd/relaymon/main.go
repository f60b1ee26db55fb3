package main

import (
	"flag"
	"log"
	"net"
	"os"
	"reflect"
	"strings"

	"github.com/robotalks/relaynode/pkg/controller"
	"github.com/robotalks/relaynode/pkg/l1/comm/mqtt"
	"github.com/robotalks/relaynode/pkg/l1/msgs"
	"github.com/robotalks/relaynode/pkg/status"
)

var (
	port    = controller.DefaultRemotePort
	mqttURL string
)

func init() {
	if val := os.Getenv("RELAY_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.IntVar(&port, "port", port, "UDP port receiving status datagrams.")
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL, also monitor registry messages when set.")
}

func monitorRegistry() {
	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/"+mqtt.MetaTopic) {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			log.Printf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		log.Printf("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
			msg.(msgs.SerializableMessage).Serializable().String())
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	if mqttURL != "" {
		monitorRegistry()
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		log.Fatalln(err)
	}
	defer conn.Close()
	log.Printf("listening on %s", conn.LocalAddr())

	buf := make([]byte, 512)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Fatalln(err)
		}
		p, err := status.Parse(buf[:n])
		if err != nil {
			log.Printf("%s: bad payload: %v", addr, err)
			continue
		}
		log.Printf("%s: %s", addr, p)
	}
}
