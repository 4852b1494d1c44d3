package app

import "errors"

var errNoKubeConfig = errors.New("kubernetes client not configured")
