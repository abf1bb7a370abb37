// Package monitor detects silent devices. A periodic sweep compares each
// active device's newest report age against 1.5 times its expected
// telemetry interval and drives the FAULT/NORMAL transition with an
// operator alert on each edge.
package monitor
