// Package main hosts the hlsforge CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP and
// websocket calls against the daemon: video registration, job submission,
// progress watching, status reporting, and configuration scaffolding. It
// centralizes configuration resolution and API address discovery so
// subcommands can focus on user experience instead of wiring.
package main
