// Package kernel implements the hosted-kernel wire protocol shared by
// the container and micro-VM backends: HTTP kernel creation, then a
// duplex JSON websocket channel where replies are matched to their
// request solely by msg_id.
//
// # Protocol
//
// A kernel is created with POST /api/kernels; messages flow over
// /api/kernels/{id}/channels as envelopes
// {header:{msg_id, msg_type}, parent_header, content}. One code
// submission is an execute_request; the kernel answers with any number
// of stream (stdout), execute_result and error messages, and the
// round-trip is complete when a status message for the matching parent
// msg_id reports execution_state "idle" — not on any single reply
// type.
package kernel
