// Package config loads lifeline settings.
//
// Files may be CUE, YAML or JSON. Every input is unified with the embedded
// #Config schema, which is closed (unknown keys are errors) and supplies the
// defaults for anything left out.
package config
