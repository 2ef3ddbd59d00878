// Package clients tracks the host windows connected to the daemon.
//
// The Hub broadcasts notifications to every window and resolves notification
// clicks: an open window whose URL matches is focused, otherwise a new browser
// window is opened at the notification target.
package clients
