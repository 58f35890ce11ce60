// Package config provides loading and environment overlay for botops
// configuration. It exposes a Default() baseline, file loading (JSON or
// YAML by extension) and a BOTOPS_* env overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/botops.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
