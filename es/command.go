package es

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// commandArgs builds the launch argv for the given configuration and
// detected version. Values are substituted literally with no escaping or
// validation; the caller must supply values that are safe as single
// arguments.
func commandArgs(conf *Config, v *version.Version) ([]string, error) {
	if v.LessThan(minVersion) {
		return nil, &UnsupportedVersionError{Version: v}
	}
	return []string{
		"-p", conf.PidFile,
		"-E", fmt.Sprintf("http.port=%v", conf.Port),
		"-E", fmt.Sprintf("transport.tcp.port=%v", conf.TransportPort),
		"-E", "path.logs=" + conf.LogsPath,
		"-E", "path.data=" + conf.DataPath,
		"-E", "cluster.name=" + conf.ClusterName,
		"-E", "network.host=" + conf.NetworkPublishHost,
		"-E", "index.store.type=" + conf.IndexStoreType,
	}, nil
}
