package version

import (
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
)

const program = "campaign_orchestrator"

// Set through ldflags on github.com/prometheus/common/version, mirrored here for dead letter records.
var (
	Version  = version.Version
	Branch   = version.Branch
	Revision = version.Revision
)

func Info() string {
	return version.Info()
}

func BuildContext() string {
	return version.BuildContext()
}

// RegisterCollector exposes the build info as a gauge.
func RegisterCollector(registry prometheus.Registerer) error {
	return registry.Register(versioncollector.NewCollector(program))
}
