package main

import "os"

// findManifest resolves which manifest file a bare invocation (no
// --manifest override) runs: LM.local.toml if present, else LM.toml,
// matching original_source/src/main.rs's find_manifest.
func findManifest(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("LM.local.toml"); err == nil {
		return "LM.local.toml"
	}
	return "LM.toml"
}
