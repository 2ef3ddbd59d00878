// Package desktop drives the local desktop: it raises notifications through
// beeep and opens URLs in the default browser through pkg/browser.
package desktop
