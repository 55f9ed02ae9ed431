package objectstore

import "github.com/sirupsen/logrus"

// log is the package-level diagnostic logger. It carries Debug-level
// breadcrumbs (materialize, commit, seal) useful when tracing a build
// pipeline's use of the store. Failures are returned to the caller as
// errors, with one exception: a manifest sidecar that cannot be written is
// logged at Warn and Commit still succeeds.
var log = logrus.WithField("component", "objectstore")
