package orchestrate

import "os/exec"

// execCommand is a thin indirection over exec.Command so tests can stub
// the postmirror hook without touching PATH.
var execCommand = exec.Command
