// Package nsd implements the network service discovery orchestrator: a
// single-writer state machine that multiplexes client discover/resolve/
// register/watch requests onto a legacy native mDNS daemon and a modern
// in-process mDNS engine (see internal/legacy and internal/modern), and
// gates their lifecycle and a multicast link lock on request presence.
//
// All mutation happens on one goroutine, the Machine's event loop
// (Machine.Run); every other entry point — client RPCs, backend callbacks,
// timers, death notifications — only ever enqueues a message onto it.
package nsd
