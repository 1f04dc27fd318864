// Package docker provides a container-backed execution session: it
// starts a kernel gateway container through the docker CLI, waits for
// the gateway to come up, then speaks the shared kernel protocol over
// it. Cleanup removes both the kernel and the container.
package docker
