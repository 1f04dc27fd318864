// Package sandboxapi provides an execution backend over a REST
// sandbox SDK: one call submits code, the response carries typed
// payload channels (text, html, markdown, images, json, chart, data),
// captured logs, and an optional error. The first payload flagged as
// the main result becomes the output; a sandbox error named like the
// final-answer sentinel is decoded into the final answer instead of
// failing.
package sandboxapi
