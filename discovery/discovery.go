// Package discovery documents the response string format the optional
// LAN discovery responder advertises. The responder itself — a UDP
// listener replying to broadcast probes — is an out-of-scope external
// collaborator per spec.md §1; this package exists only so that string
// format has one authoritative, buildable definition instead of living
// solely in a doc comment.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package discovery

import "fmt"

// ResponseFormat is the ASCII response the discovery responder sends:
// CONARTIST-IP=<ip>;SENSOR-TCP=<port>;SENSOR-UDP=<port>;IMAGE-TCP=<port>
const ResponseFormat = "CONARTIST-IP=%s;SENSOR-TCP=%d;SENSOR-UDP=%d;IMAGE-TCP=%d"

// Endpoints is the set of ports the response string advertises.
type Endpoints struct {
	IP        string
	SensorTCP int
	SensorUDP int
	ImageTCP  int
}

// Response renders e in the documented format.
func Response(e Endpoints) string {
	return fmt.Sprintf(ResponseFormat, e.IP, e.SensorTCP, e.SensorUDP, e.ImageTCP)
}
