// Package config defines the settings shared by schedule-watch and schedule-ctl
// and provides helpers to load, validate and save them in YAML format.
//
// Validate fills defaults: the check schedule, timeouts, listen addresses, the
// baseline state file and the notification presentation.
package config
