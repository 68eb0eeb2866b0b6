//go:build !windows

package config

import "path/filepath"

func configSearchPaths() []string {
	return []string{
		filepath.Join(Dir(), ConfigFileName),
		"/etc/oscnode/config.yaml",
	}
}
