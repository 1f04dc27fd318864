// Package cloudvm provides a serverless micro-VM execution session. A
// Provisioner allocates a sandbox VM exposing a kernel gateway over a
// tunnel URL; the session then speaks the shared kernel protocol to
// it, and Cleanup terminates the VM.
package cloudvm
