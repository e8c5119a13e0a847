/*
Package config loads tracker settings from YAML or JSON.

# Overview

Settings start from Defaults (the reference values: 500-entry bus history,
2000-node hard cap, 300s window) and a file only needs to name what it
changes:

	bus:
	  history_size: 1000
	  overflow: disconnect
	graph:
	  hard_cap: 5000
	  window: 10m
	log:
	  level: debug

Durations accept Go duration strings ("300s", "5m") or a bare number of
seconds.

# File Loading

	s, err := config.FromFile("causal.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	s, err = config.FromYAML(yamlBytes)
	s, err = config.FromJSON(jsonBytes)

Every loader validates the result; failures wrap ErrInvalid.
*/
package config
