package app

import "errors"

// ErrArtifactsDisabled indicates the deployment has no artifact store, so
// download links cannot be produced.
var ErrArtifactsDisabled = errors.New("artifact export disabled")
