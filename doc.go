// Package mqtt3 provides an MQTT 3.1 and 3.1.1 client engine.
//
// It turns a bidirectional byte stream into typed protocol events and client
// intents (connect, subscribe, publish, acknowledge, disconnect) into framed
// packets, enforcing the three QoS delivery contracts and correlating every
// acknowledgement with the request that caused it.
//
// # Packet Codec
//
// The package provides structs for the fourteen MQTT 3.1.1 control packets.
// The set is closed: OutboundPacket is implemented by the packets a client
// sends and InboundPacket by the packets it receives.
//
//   - ConnectPacket, ConnackPacket: Connection establishment
//   - PublishPacket, PubackPacket, PubrecPacket, PubrelPacket, PubcompPacket: Message delivery
//   - SubscribePacket, SubackPacket: Topic subscription
//   - UnsubscribePacket, UnsubackPacket: Topic unsubscription
//   - PingreqPacket, PingrespPacket: Keep-alive
//   - DisconnectPacket: Connection termination
//
// An Engine owns the packet identifier store of one connection:
//
//	engine := mqtt3.NewEngine(0)
//
//	// QoS 1 and 2 publishes, subscribes and unsubscribes get an identifier.
//	frame, err := engine.Encode(&mqtt3.PublishPacket{Topic: "a/b", QoS: mqtt3.QoS1})
//
//	// Acknowledgements come back linked to their request.
//	pkt, err := engine.ReadPacket(conn)
//	if ack, ok := pkt.(*mqtt3.PubackPacket); ok {
//	    fmt.Println(ack.Publish.Topic)
//	}
//
// # Client
//
// The Client drives one connection at a time over a Transport chosen from
// the broker URL scheme: tcp, mqtt, ssl, tls, mqtts, ws, wss, unix or quic.
//
//	client, err := mqtt3.NewClient(
//	    mqtt3.WithServers("tcp://localhost:1883"),
//	    mqtt3.WithClientID("my-client"),
//	    mqtt3.WithListener(&mqtt3.ListenerFuncs{
//	        Message: func(msg *mqtt3.Message) { fmt.Println(msg.Topic) },
//	    }),
//	)
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//
//	sub, err := client.Subscribe(ctx, mqtt3.TopicFilter{Filter: "sensors/#", QoS: mqtt3.QoS1})
//
//	tok, err := client.Publish(ctx, "sensors/1", []byte("21.5"), mqtt3.QoS2, false)
//	err = tok.Wait(ctx)
//
// Listener callbacks run on a single delivery goroutine in event order, so a
// slow callback never delays acknowledgements. Messages are delivered before
// they are acknowledged to the broker.
//
// # Errors
//
// Errors fall into three categories checked with errors.Is:
// ErrMalformedPacket, ErrProtocolViolation and ErrIllegalState. Both of the
// first two close the connection; the listener sees a *ConnectionLostError.
// A refused CONNACK is reported as a *ConnectError.
package mqtt3
