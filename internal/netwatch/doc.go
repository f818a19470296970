// Package netwatch tracks whether the network is usable.
//
// A Watcher samples a Probe on an interval and forwards only changes to a
// Sink, normally engine.Engine.SetOnline. The signal is advisory: an
// interface being up says nothing about whether the SOS endpoint answers.
package netwatch
